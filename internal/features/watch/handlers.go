// Package watch — handlers.go обрабатывает HTTP-запросы плеера.
package watch

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/whistle/internal/middleware"
)

// Handler обрабатывает запросы плеера.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик плеера.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type startRequest struct {
	VideoID string `json:"videoId" binding:"required"`
}

type eventRequest struct {
	Event   string `json:"event" binding:"required"`
	Playing bool   `json:"playing"`
}

// Start — POST /api/playback {videoId}.
func (h *Handler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BadRequest(c, err)
		return
	}

	p, err := h.service.Start(c.Request.Context(), middleware.CurrentUID(c), req.VideoID)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// Event — POST /api/playback/:presentation/events {event, playing}.
func (h *Handler) Event(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BadRequest(c, err)
		return
	}
	ev, err := ParseEvent(req.Event, req.Playing)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	res, err := h.service.HandleEvent(c.Request.Context(), middleware.CurrentUID(c), c.Param("presentation"), ev)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
