// Package reactions — handlers.go обрабатывает HTTP-запросы к реакциям,
// включая SSE-поток живых счётчиков.
package reactions

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/whistle/internal/features/videos"
	"serotonyl.ru/whistle/internal/middleware"
)

// VideoSource даёт снимок видео для решения «поставить или снять».
type VideoSource interface {
	Get(ctx context.Context, id string) (*videos.Video, error)
}

// Handler обрабатывает реакции.
type Handler struct {
	service  *Service
	observer *Observer
	videos   VideoSource
}

// NewHandler создаёт обработчик реакций.
func NewHandler(service *Service, observer *Observer, videos VideoSource) *Handler {
	return &Handler{service: service, observer: observer, videos: videos}
}

// Like — POST /api/videos/:id/like.
func (h *Handler) Like(c *gin.Context) { h.toggle(c, Like) }

// Dislike — POST /api/videos/:id/dislike.
func (h *Handler) Dislike(c *gin.Context) { h.toggle(c, Dislike) }

// toggle отвечает 202 сразу: запись идёт в фоне и не сообщает о результате.
func (h *Handler) toggle(c *gin.Context, kind Kind) {
	video, err := h.videos.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.RespondError(c, err)
		return
	}

	uid := middleware.CurrentUID(c)
	ctx := context.WithoutCancel(c.Request.Context())
	go h.service.Toggle(ctx, kind, video, uid)

	c.JSON(http.StatusAccepted, gin.H{
		"videoId": video.ID,
		"kind":    kind,
		"active":  Plan(kind, video, uid).Add,
	})
}

// Counts — GET /api/videos/:id/reactions[?kind=like|dislike].
func (h *Handler) Counts(c *gin.Context) {
	videoID := c.Param("id")

	if raw := c.Query("kind"); raw != "" {
		kind, err := ParseKind(raw)
		if err != nil {
			middleware.RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"kind": kind, "count": h.service.Count(c.Request.Context(), kind, videoID)})
		return
	}

	c.JSON(http.StatusOK, h.service.Counts(c.Request.Context(), videoID))
}

// UploaderTotals — GET /api/profiles/:uid/reactions.
func (h *Handler) UploaderTotals(c *gin.Context) {
	likes, dislikes := h.service.TotalsForUploader(c.Request.Context(), c.Param("uid"))
	c.JSON(http.StatusOK, Counts{Likes: likes, Dislikes: dislikes})
}

// Stream — GET /api/videos/:id/reactions/stream. Server-Sent Events:
// событие "reactions" на каждый новый снимок счётчиков, "error" перед закрытием.
func (h *Handler) Stream(c *gin.Context) {
	updates := make(chan Counts, 1)
	errs := make(chan error, 1)

	sub := h.observer.Observe(c.Request.Context(), c.Param("id"),
		func(likes, dislikes int) {
			latest := Counts{Likes: likes, Dislikes: dislikes}
			// Клиенту нужен только последний снимок
			select {
			case <-updates:
			default:
			}
			updates <- latest
		},
		func(err error) { errs <- err },
	)
	defer sub.Cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case counts := <-updates:
			c.SSEvent("reactions", counts)
			return true
		case err := <-errs:
			select {
			case counts := <-updates:
				c.SSEvent("reactions", counts)
			default:
			}
			c.SSEvent("error", gin.H{"message": err.Error()})
			return false
		}
	})
}
