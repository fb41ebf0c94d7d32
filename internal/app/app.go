// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы, обработчики,
// HTTP-роутер, Telegram-бота и планировщик.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mymmrac/telego"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/whistle/internal/bot"
	"serotonyl.ru/whistle/internal/bot/filters"
	"serotonyl.ru/whistle/internal/config"
	"serotonyl.ru/whistle/internal/db/postgres"
	"serotonyl.ru/whistle/internal/features/aura"
	"serotonyl.ru/whistle/internal/features/auth"
	"serotonyl.ru/whistle/internal/features/feed"
	"serotonyl.ru/whistle/internal/features/profiles"
	"serotonyl.ru/whistle/internal/features/reactions"
	"serotonyl.ru/whistle/internal/features/videos"
	"serotonyl.ru/whistle/internal/features/watch"
	"serotonyl.ru/whistle/internal/jobs"
	"serotonyl.ru/whistle/internal/media"
	"serotonyl.ru/whistle/internal/middleware"
)

// Канал pg_notify, в который пишет триггер videos_notify
const videoChangesChannel = "video_changes"

// App содержит все компоненты приложения.
type App struct {
	Router    *gin.Engine
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool

	// nil, если FEATURE_BOT_ENABLED=false
	Bot    *bot.Bot
	BotAPI *telego.Bot

	listener    *postgres.Listener
	cache       *profiles.Cache
	authEvents  *auth.Events
	rateLimiter *middleware.RateLimiter
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	listener := postgres.NewListener(pool, videoChangesChannel)

	// === 2. Хранилище медиа ===
	uploader, err := media.New(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка инициализации медиа (%s): %w", cfg.MediaBackend, err)
	}

	// === 3. Репозитории ===
	profileRepo := profiles.NewRepository(pool)
	videoRepo := videos.NewRepository(pool)
	reactionRepo := reactions.NewRepository(pool)
	auraRepo := aura.NewRepository(pool)
	watchRepo := watch.NewRepository(pool)
	authRepo := auth.NewRepository(pool, profileRepo)

	// === 4. Сервисы ===
	cache := profiles.NewCache(profileRepo)
	profileService := profiles.NewService(profileRepo, cache, uploader, cfg)
	videoService := videos.NewService(videoRepo, uploader, cfg)
	reactionService := reactions.NewService(reactionRepo)
	observer := reactions.NewObserver(listener, reactionRepo)
	sampler := feed.NewSampler(videoService, cfg)
	auraService := aura.NewService(auraRepo, profileService, cfg)
	watchService := watch.NewService(watch.NewRegistry(cfg.PlaybackSessionTTL), watchRepo, videoService, profileService)
	authEvents := auth.NewEvents()
	authService := auth.NewService(authRepo, auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL), authEvents, cfg)

	// === 5. HTTP ===
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	router := NewRouter(cfg, Handlers{
		Auth:      auth.NewHandler(authService),
		Profiles:  profiles.NewHandler(profileService),
		Aura:      aura.NewHandler(auraService),
		Feed:      feed.NewHandler(sampler),
		Videos:    videos.NewHandler(videoService),
		Reactions: reactions.NewHandler(reactionService, observer, videoService),
		Watch:     watch.NewHandler(watchService),
		Ping:      pool.Ping,
	}, authService, rateLimiter)

	a := &App{
		Router:      router,
		DB:          pool,
		listener:    listener,
		cache:       cache,
		authEvents:  authEvents,
		rateLimiter: rateLimiter,
	}

	// === 6. Telegram-бот ===
	if cfg.FeatureBotEnabled {
		var opts []telego.BotOption
		if cfg.AppEnv == "development" {
			opts = append(opts, telego.WithDefaultDebugLogger())
		}
		botAPI, err := telego.NewBot(cfg.TelegramBotToken, opts...)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
		}
		if me, err := botAPI.GetMe(ctx); err == nil {
			log.Infof("Авторизован как @%s", me.Username)
		}

		a.BotAPI = botAPI
		a.Bot = bot.New(bot.Deps{
			Sender:    botAPI,
			Filter:    filters.NewLinkFilter(filters.NewLinkRepository(pool)),
			Linker:    authService,
			Feed:      sampler,
			Videos:    videoService,
			Reactions: reactionService,
			Observer:  observer,
			Profiles:  cache,
		}, cfg)
	}

	// === 7. Планировщик задач ===
	a.Scheduler = jobs.NewScheduler(cfg, profileRepo, profileService, authRepo, watchService)

	return a, nil
}

// RunBackground запускает слушатель изменений и прогрев кеша профилей.
// Обе горутины живут до отмены ctx.
func (a *App) RunBackground(ctx context.Context) {
	go a.listener.Run(ctx)
	go prefetchOnSignIn(ctx, a.authEvents.Subscribe(), a.cache)
}

// Close освобождает ресурсы приложения.
func (a *App) Close() {
	a.rateLimiter.Close()
	a.DB.Close()
}

// prefetchOnSignIn прогревает кеш профилем пользователя, как только он вошёл.
func prefetchOnSignIn(ctx context.Context, sub *auth.Subscription, cache *profiles.Cache) {
	defer sub.Cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			if ev.SignedIn {
				cache.Prefetch(ctx, ev.UID)
			}
		}
	}
}
