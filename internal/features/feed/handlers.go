package feed

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/whistle/internal/common"
	"serotonyl.ru/whistle/internal/features/videos"
	"serotonyl.ru/whistle/internal/middleware"
)

// Handler отдаёт ленту по HTTP.
type Handler struct {
	sampler *Sampler
}

// NewHandler создаёт обработчик ленты.
func NewHandler(sampler *Sampler) *Handler {
	return &Handler{sampler: sampler}
}

// Page — GET /api/feed?page=N.
func (h *Handler) Page(c *gin.Context) {
	var key *int
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			middleware.RespondError(c, common.ErrInvalidPageKey)
			return
		}
		key = &n
	}

	page, err := h.sampler.LoadPage(c.Request.Context(), key)
	if err != nil {
		middleware.RespondError(c, err)
		return
	}
	if page.Items == nil {
		page.Items = []*videos.Video{}
	}
	c.JSON(http.StatusOK, page)
}
