// Package profiles — handlers.go обрабатывает HTTP-запросы к профилям.
package profiles

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/whistle/internal/middleware"
)

// maxPictureBytes — ограничение размера аватарки (10 МБ).
const maxPictureBytes = 10 << 20

// Handler обрабатывает запросы к профилям.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик профилей.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type updateNameRequest struct {
	Name string `json:"name" binding:"required"`
}

// Me — GET /api/me.
func (h *Handler) Me(c *gin.Context) {
	h.respondProfile(c, middleware.CurrentUID(c))
}

// Get — GET /api/profiles/:uid.
func (h *Handler) Get(c *gin.Context) {
	h.respondProfile(c, c.Param("uid"))
}

func (h *Handler) respondProfile(c *gin.Context, uid string) {
	p, err := h.service.Get(c.Request.Context(), uid)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdateName — PATCH /api/profiles/me.
func (h *Handler) UpdateName(c *gin.Context) {
	var req updateNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BadRequest(c, err)
		return
	}

	p, err := h.service.UpdateName(c.Request.Context(), middleware.CurrentUID(c), req.Name)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdatePicture — POST /api/profiles/me/picture (multipart: file).
func (h *Handler) UpdatePicture(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPictureBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		middleware.BadRequest(c, errors.New("нужен файл в поле file"))
		return
	}
	file, err := fh.Open()
	if err != nil {
		middleware.BadRequest(c, err)
		return
	}
	defer file.Close()

	p, err := h.service.UpdatePicture(c.Request.Context(), middleware.CurrentUID(c), file, fh.Filename)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
