// Package bot — feed.go показывает ленту в чате.
//
// У каждого чата своя очередь видео из текущей страницы ленты и свой
// reactions.View: подписка на счётчики показанного видео. Когда счётчики
// меняются, подпись последнего сообщения переписывается.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/whistle/internal/common"
	"serotonyl.ru/whistle/internal/features/profiles"
	"serotonyl.ru/whistle/internal/features/reactions"
	"serotonyl.ru/whistle/internal/features/videos"
)

// Данные callback-кнопок: "r:like:<token>", "r:dislike:<token>", "next".
// Telegram ограничивает callback_data 64 байтами, а id видео бывает длиннее,
// поэтому в кнопку кладётся короткий номер показа внутри чата.
const (
	callbackReaction = "r"
	callbackNext     = "next"

	callbackDataLimit = 64
	// Сколько последних показов чата помнят свои кнопки
	maxShownTokens = 64
)

// chatFeed — состояние ленты одного чата.
type chatFeed struct {
	mu sync.Mutex

	nextKey *int
	queue   []*videos.Video

	current   *videos.Video
	token     string
	messageID int
	uploader  string
	likes     int
	dislikes  int

	view *reactions.View

	seq    int
	shown  map[string]string // токен кнопки -> id видео
	tokens []string
}

func (b *Bot) chat(chatID int64) *chatFeed {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := b.chats[chatID]
	if !ok {
		st = &chatFeed{view: reactions.NewView(b.Observer)}
		b.chats[chatID] = st
	}
	return st
}

// nextVideo берёт следующее видео из очереди, при пустой очереди грузит
// следующую страницу ленты. nil без ошибки — лента пуста.
func (st *chatFeed) nextVideo(ctx context.Context, source FeedSource) (*videos.Video, error) {
	if len(st.queue) == 0 {
		page, err := source.LoadPage(ctx, st.nextKey)
		if err != nil {
			return nil, err
		}
		st.queue = page.Items
		st.nextKey = page.NextKey
	}
	if len(st.queue) == 0 {
		return nil, nil
	}

	v := st.queue[0]
	st.queue = st.queue[1:]
	return v, nil
}

// remember выдаёт токен показа для кнопок видео. Старые токены вытесняются.
func (st *chatFeed) remember(videoID string) string {
	if st.shown == nil {
		st.shown = make(map[string]string)
	}
	st.seq++
	token := strconv.FormatInt(int64(st.seq), 36)
	st.shown[token] = videoID
	st.tokens = append(st.tokens, token)
	if len(st.tokens) > maxShownTokens {
		delete(st.shown, st.tokens[0])
		st.tokens = st.tokens[1:]
	}
	return token
}

// lookup возвращает id видео по токену кнопки.
func (st *chatFeed) lookup(token string) (string, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	id, ok := st.shown[token]
	return id, ok
}

// showNext отправляет в чат следующее видео и переключает подписку на него.
func (b *Bot) showNext(ctx context.Context, chatID int64, uid string) {
	st := b.chat(chatID)
	st.mu.Lock()

	video, err := st.nextVideo(ctx, b.Feed)
	if err != nil {
		st.mu.Unlock()
		log.WithError(err).WithField("chat_id", chatID).Warn("Лента не загрузилась")
		b.sendMessage(ctx, chatID, "😔 "+common.ErrFeedUnavailable.Error())
		return
	}
	if video == nil {
		st.mu.Unlock()
		b.sendMessage(ctx, chatID, "Видео пока нет")
		return
	}

	uploader := ""
	if p, ok := b.Profiles.Get(ctx, video.UploaderUID); ok {
		uploader = p.Name
	}
	likes, dislikes := len(video.LikedBy), len(video.DislikedBy)
	token := st.remember(video.ID)

	params := tu.Video(tu.ID(chatID), tu.FileFromURL(video.URL)).
		WithCaption(renderCaption(video, uploader, likes, dislikes)).
		WithReplyMarkup(keyboard(token))
	msg, err := b.Sender.SendVideo(ctx, params)
	if err != nil {
		st.mu.Unlock()
		log.WithError(err).WithFields(log.Fields{
			"chat_id": chatID,
			"video":   video.ID,
		}).Error("Ошибка отправки видео")
		return
	}

	st.current = video
	st.token = token
	st.messageID = msg.MessageID
	st.uploader = uploader
	st.likes, st.dislikes = likes, dislikes
	st.mu.Unlock()

	videoID := video.ID
	st.view.Focus(ctx, videoID,
		func(likes, dislikes int) { b.updateCaption(ctx, chatID, videoID, likes, dislikes) },
		func(err error) {
			log.WithError(err).WithFields(log.Fields{
				"chat_id": chatID,
				"video":   videoID,
			}).Warn("Подписка на реакции оборвалась")
		},
	)

	log.WithFields(log.Fields{
		"chat_id": chatID,
		"uid":     uid,
		"video":   videoID,
	}).Debug("Видео показано")
}

// updateCaption переписывает подпись, если счётчики показанного видео изменились.
func (b *Bot) updateCaption(ctx context.Context, chatID int64, videoID string, likes, dislikes int) {
	st := b.chat(chatID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.current == nil || st.current.ID != videoID {
		return
	}
	if st.likes == likes && st.dislikes == dislikes {
		return
	}
	st.likes, st.dislikes = likes, dislikes
	b.editCaptionLocked(ctx, chatID, st)
}

func (b *Bot) editCaptionLocked(ctx context.Context, chatID int64, st *chatFeed) {
	_, err := b.Sender.EditMessageCaption(ctx, &telego.EditMessageCaptionParams{
		ChatID:      tu.ID(chatID),
		MessageID:   st.messageID,
		Caption:     renderCaption(st.current, st.uploader, st.likes, st.dislikes),
		ReplyMarkup: keyboard(st.token),
	})
	if err != nil {
		log.WithError(err).WithField("chat_id", chatID).Debug("Не удалось обновить подпись")
	}
}

// watchProfiles дописывает имя автора в подписи, когда профиль
// догружается в кеш после промаха.
func (b *Bot) watchProfiles(ctx context.Context, sub *profiles.Subscription) {
	defer sub.Cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case snapshot := <-sub.Updates():
			b.fillUploaders(ctx, snapshot)
		}
	}
}

func (b *Bot) fillUploaders(ctx context.Context, snapshot map[string]profiles.Profile) {
	b.mu.Lock()
	chats := make(map[int64]*chatFeed, len(b.chats))
	for id, st := range b.chats {
		chats[id] = st
	}
	b.mu.Unlock()

	for chatID, st := range chats {
		st.mu.Lock()
		if st.current != nil && st.uploader == "" {
			if p, ok := snapshot[st.current.UploaderUID]; ok {
				st.uploader = p.Name
				b.editCaptionLocked(ctx, chatID, st)
			}
		}
		st.mu.Unlock()
	}
}

// handleCallback обрабатывает нажатия inline-кнопок.
func (b *Bot) handleCallback(ctx context.Context, q *telego.CallbackQuery) {
	chatID := q.From.ID
	if q.Message != nil {
		chatID = q.Message.GetChat().ID
	}

	uid, err := b.Filter.Resolve(ctx, q.From.ID)
	if err != nil {
		b.answer(ctx, q.ID, common.ErrNotLinked.Error())
		return
	}

	action, kind, token, err := parseCallback(q.Data)
	if err != nil {
		b.answer(ctx, q.ID, "")
		return
	}

	switch action {
	case callbackNext:
		b.answer(ctx, q.ID, "")
		b.showNext(ctx, chatID, uid)

	case callbackReaction:
		videoID, ok := b.chat(chatID).lookup(token)
		if !ok {
			b.answer(ctx, q.ID, "Кнопка устарела, откройте /feed")
			return
		}

		video, err := b.Videos.Get(ctx, videoID)
		if err != nil {
			if errors.Is(err, common.ErrVideoNotFound) {
				b.answer(ctx, q.ID, "Видео удалено")
			} else {
				b.answer(ctx, q.ID, "Не получилось, попробуйте ещё раз")
			}
			return
		}

		active := reactions.Plan(kind, video, uid).Add
		// Запись «выстрелил и забыл»: новые счётчики придут через подписку
		go b.Reactions.Toggle(context.WithoutCancel(ctx), kind, video, uid)

		b.answer(ctx, q.ID, reactionAnswer(kind, active))
	}
}

func (b *Bot) answer(ctx context.Context, queryID, text string) {
	params := tu.CallbackQuery(queryID)
	if text != "" {
		params = params.WithText(text)
	}
	if err := b.Sender.AnswerCallbackQuery(ctx, params); err != nil {
		log.WithError(err).Debug("Не удалось ответить на нажатие кнопки")
	}
}

func parseCallback(data string) (action string, kind reactions.Kind, token string, err error) {
	if data == callbackNext {
		return callbackNext, "", "", nil
	}

	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 || parts[0] != callbackReaction || parts[2] == "" {
		return "", "", "", fmt.Errorf("неизвестная кнопка %q", data)
	}
	kind, err = reactions.ParseKind(parts[1])
	if err != nil {
		return "", "", "", err
	}
	return callbackReaction, kind, parts[2], nil
}

func keyboard(token string) *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("👍").WithCallbackData(callbackReaction+":"+string(reactions.Like)+":"+token),
			tu.InlineKeyboardButton("👎").WithCallbackData(callbackReaction+":"+string(reactions.Dislike)+":"+token),
			tu.InlineKeyboardButton("➡️").WithCallbackData(callbackNext),
		),
	)
}

func reactionAnswer(kind reactions.Kind, active bool) string {
	switch {
	case kind == reactions.Like && active:
		return "👍 Лайк поставлен"
	case kind == reactions.Like:
		return "Лайк убран"
	case active:
		return "👎 Дизлайк поставлен"
	default:
		return "Дизлайк убран"
	}
}

// renderCaption — подпись под видео.
func renderCaption(v *videos.Video, uploader string, likes, dislikes int) string {
	if uploader == "" {
		uploader = "…"
	}
	return fmt.Sprintf("🎬 %s\n👤 %s · %s\n👍 %d %s   👎 %d %s",
		v.Title,
		uploader, v.Date,
		likes, common.PluralizeLikes(likes),
		dislikes, common.PluralizeDislikes(dislikes),
	)
}

// renderProfile — ответ на /me.
func renderProfile(p *profiles.Profile, likes, dislikes int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "👤 %s\n", p.Name)
	fmt.Fprintf(&sb, "✨ Аура: %s (наград доступно: %d)\n", common.FormatNumber(int64(p.TotalAura)), p.AwardsAvailable)
	fmt.Fprintf(&sb, "🎬 Загружено: %s\n", common.PluralizeVideos(len(p.Uploads)))
	fmt.Fprintf(&sb, "%s на ваших видео\n", common.FormatReactions(likes, dislikes))
	fmt.Fprintf(&sb, "👀 Просмотрено: %s", common.PluralizeVideos(p.VideosWatched))
	return sb.String()
}
