// Package videos — handlers.go обрабатывает HTTP-запросы к видео.
package videos

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/whistle/internal/middleware"
)

// maxUploadBytes — ограничение размера загружаемого файла (200 МБ).
const maxUploadBytes = 200 << 20

// Handler обрабатывает запросы к видео.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик видео.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// registerRequest — тело POST /api/videos/register.
type registerRequest struct {
	Caption string         `json:"caption"`
	Upload  map[string]any `json:"upload" binding:"required"`
}

// Upload — POST /api/videos (multipart: file, caption).
func (h *Handler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

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

	video, err := h.service.Upload(c.Request.Context(), middleware.CurrentUID(c), c.PostForm("caption"), file, fh.Filename)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, video)
}

// Register — POST /api/videos/register: клиент сам загрузил файл в CDN
// и присылает ответ CDN.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BadRequest(c, err)
		return
	}

	video, err := h.service.Register(c.Request.Context(), middleware.CurrentUID(c), req.Caption, req.Upload)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, video)
}

// Get — GET /api/videos/:id.
func (h *Handler) Get(c *gin.Context) {
	video, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, video)
}

// Delete — DELETE /api/videos/:id.
func (h *Handler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), middleware.CurrentUID(c), c.Param("id")); err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListByUploader — GET /api/profiles/:uid/videos.
func (h *Handler) ListByUploader(c *gin.Context) {
	list, err := h.service.ListByUploader(c.Request.Context(), c.Param("uid"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	if list == nil {
		list = []*Video{}
	}
	c.JSON(http.StatusOK, gin.H{"videos": list})
}
