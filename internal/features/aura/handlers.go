// Package aura — handlers.go обрабатывает HTTP-запросы к ауре.
package aura

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/whistle/internal/middleware"
)

// Handler обрабатывает запросы к ауре.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик ауры.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type incrementRequest struct {
	Delta int `json:"delta" binding:"required"`
}

// Increment — POST /api/profiles/:uid/aura.
func (h *Handler) Increment(c *gin.Context) {
	var req incrementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.BadRequest(c, err)
		return
	}

	res, err := h.service.Increment(c.Request.Context(), middleware.CurrentUID(c), c.Param("uid"), req.Delta)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// History — GET /api/profiles/:uid/aura?limit=N.
func (h *Handler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	entries, err := h.service.History(c.Request.Context(), c.Param("uid"), limit)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	if entries == nil {
		entries = []*LogEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}
