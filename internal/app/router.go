package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/whistle/internal/config"
	"serotonyl.ru/whistle/internal/features/aura"
	"serotonyl.ru/whistle/internal/features/auth"
	"serotonyl.ru/whistle/internal/features/feed"
	"serotonyl.ru/whistle/internal/features/profiles"
	"serotonyl.ru/whistle/internal/features/reactions"
	"serotonyl.ru/whistle/internal/features/videos"
	"serotonyl.ru/whistle/internal/features/watch"
	"serotonyl.ru/whistle/internal/middleware"
)

// Handlers — обработчики HTTP API.
type Handlers struct {
	Auth      *auth.Handler
	Profiles  *profiles.Handler
	Aura      *aura.Handler
	Feed      *feed.Handler
	Videos    *videos.Handler
	Reactions *reactions.Handler
	Watch     *watch.Handler

	// Ping проверяет БД для /healthz
	Ping func(ctx context.Context) error
}

// NewRouter собирает gin-роутер со всеми маршрутами API.
func NewRouter(cfg *config.Config, h Handlers, authn middleware.Authenticator, rl *middleware.RateLimiter) *gin.Engine {
	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.AccessLog(), middleware.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "база данных недоступна"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	// Без авторизации: лимит по IP
	public := api.Group("/auth", middleware.RateLimit(rl))
	public.POST("/signup", h.Auth.SignUp)
	public.POST("/login", h.Auth.SignIn)

	// С авторизацией: лимит по uid
	private := api.Group("", middleware.RequireAuth(authn), middleware.RateLimit(rl))
	private.POST("/auth/logout", h.Auth.SignOut)
	private.GET("/me", h.Profiles.Me)

	private.GET("/profiles/:uid", h.Profiles.Get)
	private.PATCH("/profiles/me", h.Profiles.UpdateName)
	private.POST("/profiles/me/picture", h.Profiles.UpdatePicture)
	private.GET("/profiles/:uid/videos", h.Videos.ListByUploader)
	private.GET("/profiles/:uid/reactions", h.Reactions.UploaderTotals)
	if cfg.FeatureAuraEnabled {
		private.POST("/profiles/:uid/aura", h.Aura.Increment)
		private.GET("/profiles/:uid/aura", h.Aura.History)
	}

	private.GET("/feed", h.Feed.Page)

	private.POST("/videos", h.Videos.Upload)
	private.POST("/videos/register", h.Videos.Register)
	private.GET("/videos/:id", h.Videos.Get)
	private.DELETE("/videos/:id", h.Videos.Delete)
	private.POST("/videos/:id/like", h.Reactions.Like)
	private.POST("/videos/:id/dislike", h.Reactions.Dislike)
	private.GET("/videos/:id/reactions", h.Reactions.Counts)
	private.GET("/videos/:id/reactions/stream", h.Reactions.Stream)

	private.POST("/playback", h.Watch.Start)
	private.POST("/playback/:presentation/events", h.Watch.Event)

	return r
}
