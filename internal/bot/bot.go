// Package bot — Telegram-клиент ленты: инициализация, polling и маршрутизация.
// bot.go принимает апдейты, проверяет доступ и раздаёт команды обработчикам.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/whistle/internal/bot/filters"
	"serotonyl.ru/whistle/internal/common"
	"serotonyl.ru/whistle/internal/config"
	"serotonyl.ru/whistle/internal/features/feed"
	"serotonyl.ru/whistle/internal/features/profiles"
	"serotonyl.ru/whistle/internal/features/reactions"
	"serotonyl.ru/whistle/internal/features/videos"
	"serotonyl.ru/whistle/internal/middleware"
)

// Sender — методы Bot API, которыми пользуется бот. Реализуется *telego.Bot.
type Sender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	SendVideo(ctx context.Context, params *telego.SendVideoParams) (*telego.Message, error)
	EditMessageCaption(ctx context.Context, params *telego.EditMessageCaptionParams) (*telego.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error
}

// Linker проверяет email и пароль при /link. Реализуется auth.Service.
type Linker interface {
	VerifyCredentials(ctx context.Context, email, password string) (string, error)
}

// FeedSource отдаёт страницы ленты. Реализуется *feed.Sampler.
type FeedSource interface {
	LoadPage(ctx context.Context, pageKey *int) (*feed.Page, error)
}

// VideoSource читает видео. Реализуется *videos.Service.
type VideoSource interface {
	Get(ctx context.Context, id string) (*videos.Video, error)
}

// Deps — всё, что нужно боту.
type Deps struct {
	Sender    Sender
	Filter    *filters.LinkFilter
	Linker    Linker
	Feed      FeedSource
	Videos    VideoSource
	Reactions *reactions.Service
	Observer  *reactions.Observer
	Profiles  *profiles.Cache
}

// Bot — главная структура бота.
type Bot struct {
	Deps
	cfg *config.Config

	rateLimiter *middleware.RateLimiter
	parser      *CommandParser

	mu    sync.Mutex
	chats map[int64]*chatFeed

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт бота.
func New(deps Deps, cfg *config.Config) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		Deps:        deps,
		cfg:         cfg,
		rateLimiter: middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		parser:      NewCommandParser(),
		chats:       make(map[int64]*chatFeed),
		inflight:    make(chan struct{}, maxInFlight),
	}
}

// Start запускает long polling и обрабатывает апдейты до отмены ctx.
func (b *Bot) Start(ctx context.Context, api *telego.Bot) error {
	updates, err := api.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        b.cfg.BotUpdateTimeoutSeconds,
		AllowedUpdates: []string{"message", "callback_query"},
	})
	if err != nil {
		return fmt.Errorf("не удалось запустить long polling: %w", err)
	}

	go b.watchProfiles(ctx, b.Profiles.Subscribe())

	log.WithFields(log.Fields{
		"max_inflight": cap(b.inflight),
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.shutdown()
			return nil

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				b.shutdown()
				return nil
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd telego.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// shutdown закрывает подписки всех чатов.
func (b *Bot) shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, st := range b.chats {
		st.view.Close()
	}
	b.rateLimiter.Close()
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update telego.Update) {
	defer middleware.RecoverFromPanic()

	middleware.LogUpdate(update)

	switch {
	case update.CallbackQuery != nil:
		q := update.CallbackQuery
		if !b.rateLimiter.Allow(rateKey(q.From.ID)) {
			log.WithField("user_id", q.From.ID).Debug("rate limited")
			return
		}
		b.handleCallback(ctx, q)

	case update.Message != nil && update.Message.From != nil && update.Message.Text != "":
		msg := update.Message
		if !b.rateLimiter.Allow(rateKey(msg.From.ID)) {
			log.WithField("user_id", msg.From.ID).Debug("rate limited")
			return
		}

		cmd, args, isCommand := b.parser.ParseCommand(msg.Text)
		if !isCommand {
			return
		}
		log.WithFields(log.Fields{
			"cmd":  cmd,
			"args": len(args),
		}).Debug("parsed command")

		b.routeCommand(ctx, msg, cmd, args)
	}
}

func rateKey(telegramUserID int64) string {
	return fmt.Sprintf("tg:%d", telegramUserID)
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, msg *telego.Message, cmd string, args []string) {
	chatID := msg.Chat.ID

	switch cmd {
	case "start", "help":
		b.sendMessage(ctx, chatID, "Привет! Это лента Whistle.\n"+
			"/link <email> <пароль> — привязать аккаунт (только в личке)\n"+
			"/feed — следующее видео\n"+
			"/me — мой профиль")
		return

	case "link":
		b.handleLink(ctx, msg, args)
		return
	}

	uid, err := b.Filter.Resolve(ctx, msg.From.ID)
	if err != nil {
		if errors.Is(err, common.ErrNotLinked) {
			b.sendMessage(ctx, chatID, "🔒 "+common.ErrNotLinked.Error())
		}
		return
	}

	switch cmd {
	case "feed", "next":
		b.showNext(ctx, chatID, uid)
	case "me":
		b.handleMe(ctx, chatID, uid)
	}
}

// handleLink — /link <email> <пароль>. Пароль виден в истории чата,
// поэтому команда работает только в личке.
func (b *Bot) handleLink(ctx context.Context, msg *telego.Message, args []string) {
	chatID := msg.Chat.ID
	if msg.Chat.Type != telego.ChatTypePrivate {
		b.sendMessage(ctx, chatID, "Привязка работает только в личных сообщениях")
		return
	}
	if len(args) != 2 {
		b.sendMessage(ctx, chatID, "Использование: /link <email> <пароль>")
		return
	}

	uid, err := b.Linker.VerifyCredentials(ctx, args[0], args[1])
	if err != nil {
		switch {
		case errors.Is(err, common.ErrInvalidCredentials), errors.Is(err, common.ErrTooManyAttempts):
			b.sendMessage(ctx, chatID, "❌ "+err.Error())
		default:
			log.WithError(err).WithField("user_id", msg.From.ID).Error("Ошибка проверки учётных данных")
			b.sendMessage(ctx, chatID, "❌ Не получилось, попробуйте позже")
		}
		return
	}

	if err := b.Filter.Link(ctx, msg.From.ID, uid); err != nil {
		log.WithError(err).WithField("user_id", msg.From.ID).Error("Ошибка привязки аккаунта")
		b.sendMessage(ctx, chatID, "❌ Не получилось, попробуйте позже")
		return
	}
	b.sendMessage(ctx, chatID, "✅ Аккаунт привязан. Жмите /feed")
}

// handleMe — /me: профиль и реакции на видео пользователя.
func (b *Bot) handleMe(ctx context.Context, chatID int64, uid string) {
	p, err := b.Profiles.Load(ctx, uid)
	if err != nil {
		log.WithError(err).WithField("uid", uid).Warn("Не удалось загрузить профиль")
		b.sendMessage(ctx, chatID, "Профиль временно недоступен")
		return
	}
	likes, dislikes := b.Reactions.TotalsForUploader(ctx, uid)

	b.sendMessage(ctx, chatID, renderProfile(p, likes, dislikes))
}

// sendMessage — утилита для отправки сообщений.
func (b *Bot) sendMessage(ctx context.Context, chatID int64, text string) {
	if _, err := b.Sender.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// CommandParser разбирает команды с префиксами / ! и .
type CommandParser struct {
	validPrefixes []string
}

// NewCommandParser создаёт парсер команд.
func NewCommandParser() *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"/", "!", "."},
	}
}

// ParseCommand разбирает текст на команду и аргументы.
// Суффикс @botname у команды отбрасывается: /feed@whistle_bot → feed.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}
	if !hasPrefix {
		return "", nil, false
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil, false
	}

	command := strings.ToLower(parts[0])
	if at := strings.IndexByte(command, '@'); at >= 0 {
		command = command[:at]
	}

	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	return command, args, true
}
