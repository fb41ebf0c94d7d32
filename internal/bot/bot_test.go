package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mymmrac/telego"

	"serotonyl.ru/whistle/internal/bot/filters"
	"serotonyl.ru/whistle/internal/common"
	"serotonyl.ru/whistle/internal/config"
	"serotonyl.ru/whistle/internal/db/postgres"
	"serotonyl.ru/whistle/internal/features/feed"
	"serotonyl.ru/whistle/internal/features/profiles"
	"serotonyl.ru/whistle/internal/features/reactions"
	"serotonyl.ru/whistle/internal/features/videos"
)

const waitTimeout = 2 * time.Second

func TestParseCommand(t *testing.T) {
	p := NewCommandParser()

	tests := []struct {
		text    string
		cmd     string
		args    []string
		isValid bool
	}{
		{"/feed", "feed", nil, true},
		{"/Feed@whistle_bot", "feed", nil, true},
		{"/link a@b.c secret", "link", []string{"a@b.c", "secret"}, true},
		{"!me", "me", nil, true},
		{"просто текст", "", nil, false},
		{"/", "", nil, false},
	}

	for _, tt := range tests {
		cmd, args, ok := p.ParseCommand(tt.text)
		if ok != tt.isValid || cmd != tt.cmd || strings.Join(args, " ") != strings.Join(tt.args, " ") {
			t.Errorf("ParseCommand(%q) = %q, %v, %v", tt.text, cmd, args, ok)
		}
	}
}

func TestParseCallback(t *testing.T) {
	if action, _, _, err := parseCallback("next"); err != nil || action != callbackNext {
		t.Fatalf("next: %q, %v", action, err)
	}

	action, kind, token, err := parseCallback("r:dislike:1z")
	if err != nil || action != callbackReaction || kind != reactions.Dislike || token != "1z" {
		t.Fatalf("r:dislike:1z → %q %q %q %v", action, kind, token, err)
	}

	for _, bad := range []string{"r:love:abc", "r:like:", "x:like:abc", ""} {
		if _, _, _, err := parseCallback(bad); err == nil {
			t.Errorf("parseCallback(%q): ожидали ошибку", bad)
		}
	}
}

func TestKeyboardFitsCallbackLimit(t *testing.T) {
	// id из S3 — 64 hex-символа blake3 с префиксом
	longID := "whistle_uploads/" + strings.Repeat("ab", 32)
	st := &chatFeed{}
	var token string
	for i := 0; i < 100000; i++ {
		token = st.remember(longID)
	}

	for _, row := range keyboard(token).InlineKeyboard {
		for _, btn := range row {
			if len(btn.CallbackData) > callbackDataLimit {
				t.Errorf("callback_data %q: %d байт", btn.CallbackData, len(btn.CallbackData))
			}
			if _, _, got, err := parseCallback(btn.CallbackData); err != nil || (btn.CallbackData != callbackNext && got != token) {
				t.Errorf("parseCallback(%q) = %q, %v", btn.CallbackData, got, err)
			}
		}
	}

	if id, ok := st.lookup(token); !ok || id != longID {
		t.Fatalf("lookup(%q) = %q, %v", token, id, ok)
	}
	if len(st.shown) != maxShownTokens {
		t.Fatalf("запомнено %d показов, want %d", len(st.shown), maxShownTokens)
	}
	if _, ok := st.lookup("1"); ok {
		t.Fatal("первый показ должен быть вытеснен")
	}
}

func TestRenderCaption(t *testing.T) {
	v := &videos.Video{Title: "Закат", Date: "Oct 17, 2026"}

	got := renderCaption(v, "", 1, 3)
	want := "🎬 Закат\n👤 … · Oct 17, 2026\n👍 1 лайк   👎 3 дизлайка"
	if got != want {
		t.Fatalf("renderCaption =\n%s\nwant\n%s", got, want)
	}
}

// --- фейки ---

type sentVideo struct {
	chatID  int64
	caption string
}

type fakeSender struct {
	mu       sync.Mutex
	messages []string
	videos   []sentVideo
	edits    []string
	answers  []string
	nextID   int
}

func (f *fakeSender) SendMessage(_ context.Context, p *telego.SendMessageParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, p.Text)
	f.nextID++
	return &telego.Message{MessageID: f.nextID}, nil
}

func (f *fakeSender) SendVideo(_ context.Context, p *telego.SendVideoParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videos = append(f.videos, sentVideo{chatID: p.ChatID.ID, caption: p.Caption})
	f.nextID++
	return &telego.Message{MessageID: f.nextID}, nil
}

func (f *fakeSender) EditMessageCaption(_ context.Context, p *telego.EditMessageCaptionParams) (*telego.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, p.Caption)
	return &telego.Message{MessageID: p.MessageID}, nil
}

func (f *fakeSender) AnswerCallbackQuery(_ context.Context, p *telego.AnswerCallbackQueryParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, p.Text)
	return nil
}

func (f *fakeSender) lastMessage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1]
}

func (f *fakeSender) hasEdit(substr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.edits {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

type memLinks struct {
	mu    sync.Mutex
	links map[int64]string
}

func (m *memLinks) UIDFor(_ context.Context, id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uid, ok := m.links[id]
	if !ok {
		return "", common.ErrNotLinked
	}
	return uid, nil
}

func (m *memLinks) Link(_ context.Context, id int64, uid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[id] = uid
	return nil
}

type fakeLinker struct{}

func (fakeLinker) VerifyCredentials(_ context.Context, email, password string) (string, error) {
	if email == "ann@example.com" && password == "password1" {
		return "u-viewer", nil
	}
	return "", common.ErrInvalidCredentials
}

// memVideos — одно хранилище и для ленты, и для реакций.
type memVideos struct {
	mu     sync.Mutex
	videos map[string]*videos.Video
}

func (m *memVideos) snapshot(id string) *videos.Video {
	v := *m.videos[id]
	v.LikedBy = append([]string{}, v.LikedBy...)
	v.DislikedBy = append([]string{}, v.DislikedBy...)
	return &v
}

func (m *memVideos) Get(_ context.Context, id string) (*videos.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.videos[id]; !ok {
		return nil, common.ErrVideoNotFound
	}
	return m.snapshot(id), nil
}

func (m *memVideos) ListAll(_ context.Context) ([]*videos.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*videos.Video
	for id := range m.videos {
		out = append(out, m.snapshot(id))
	}
	return out, nil
}

func (m *memVideos) Apply(_ context.Context, videoID, uid string, mut reactions.Mutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[videoID]
	if !ok {
		return common.ErrVideoNotFound
	}
	v.LikedBy, v.DislikedBy = mut.Apply(v.LikedBy, v.DislikedBy, uid)
	return nil
}

func (m *memVideos) Counts(_ context.Context, videoID string) (reactions.Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[videoID]
	if !ok {
		return reactions.Counts{}, common.ErrVideoNotFound
	}
	return reactions.Counts{Likes: len(v.LikedBy), Dislikes: len(v.DislikedBy)}, nil
}

func (m *memVideos) TotalsForUploader(_ context.Context, uid string) (reactions.Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c reactions.Counts
	for _, v := range m.videos {
		if v.UploaderUID == uid {
			c.Likes += len(v.LikedBy)
			c.Dislikes += len(v.DislikedBy)
		}
	}
	return c, nil
}

type fakeProfiles map[string]*profiles.Profile

func (f fakeProfiles) Get(_ context.Context, uid string) (*profiles.Profile, error) {
	p, ok := f[uid]
	if !ok {
		return nil, common.ErrProfileNotFound
	}
	return p.Clone(), nil
}

type fixture struct {
	bot      *Bot
	sender   *fakeSender
	store    *memVideos
	listener *postgres.Listener
	links    *memLinks
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{
		FeedPageSize:      5,
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		BotMaxInflight:    4,
	}
	store := &memVideos{videos: map[string]*videos.Video{
		"v1": {ID: "v1", Title: "Закат", Date: "Oct 17, 2026", UploaderUID: "u-ann"},
	}}
	listener := postgres.NewListener(nil, "video_changes")
	sender := &fakeSender{}
	links := &memLinks{links: map[int64]string{}}

	b := New(Deps{
		Sender:    sender,
		Filter:    filters.NewLinkFilter(links),
		Linker:    fakeLinker{},
		Feed:      feed.NewSampler(store, cfg),
		Videos:    store,
		Reactions: reactions.NewService(store),
		Observer:  reactions.NewObserver(listener, store),
		Profiles:  profiles.NewCache(fakeProfiles{
			"u-ann": {UID: "u-ann", Name: "Ann", Uploads: []string{"v1"}},
		}),
	}, cfg)
	t.Cleanup(b.shutdown)

	return &fixture{bot: b, sender: sender, store: store, listener: listener, links: links}
}

func message(chatType string, text string) telego.Update {
	return telego.Update{Message: &telego.Message{
		MessageID: 1,
		Chat:      telego.Chat{ID: 7, Type: chatType},
		From:      &telego.User{ID: 7, Username: "viewer"},
		Text:      text,
	}}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("не дождались: %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestUnlinkedUserIsAskedToLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.bot.handleUpdate(ctx, message(telego.ChatTypePrivate, "/feed"))
	if got := f.sender.lastMessage(); !strings.Contains(got, "/link") {
		t.Fatalf("ответ = %q", got)
	}

	f.bot.handleUpdate(ctx, message(telego.ChatTypeGroup, "/link ann@example.com password1"))
	if got := f.sender.lastMessage(); !strings.Contains(got, "личных") {
		t.Fatalf("link в группе: ответ = %q", got)
	}

	f.bot.handleUpdate(ctx, message(telego.ChatTypePrivate, "/link ann@example.com wrong"))
	if got := f.sender.lastMessage(); !strings.Contains(got, common.ErrInvalidCredentials.Error()) {
		t.Fatalf("неверный пароль: ответ = %q", got)
	}

	f.bot.handleUpdate(ctx, message(telego.ChatTypePrivate, "/link ann@example.com password1"))
	if uid, _ := f.links.UIDFor(ctx, 7); uid != "u-viewer" {
		t.Fatalf("привязка = %q", uid)
	}
}

func TestFeedLikeUpdatesCaptionLive(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go f.bot.watchProfiles(ctx, f.bot.Profiles.Subscribe())
	f.links.links[7] = "u-viewer"

	f.bot.handleUpdate(ctx, message(telego.ChatTypePrivate, "/feed"))

	f.sender.mu.Lock()
	if len(f.sender.videos) != 1 || !strings.Contains(f.sender.videos[0].caption, "Закат") {
		f.sender.mu.Unlock()
		t.Fatalf("отправленные видео = %+v", f.sender.videos)
	}
	f.sender.mu.Unlock()

	// Профиль автора догружается в кеш асинхронно, подпись дописывается
	waitFor(t, "имя автора в подписи", func() bool { return f.sender.hasEdit("👤 Ann") })

	waitFor(t, "подписка на видео", func() bool { return f.listener.Subscribers() == 1 })

	st := f.bot.chat(7)
	st.mu.Lock()
	token := st.token
	st.mu.Unlock()

	f.bot.handleUpdate(ctx, telego.Update{CallbackQuery: &telego.CallbackQuery{
		ID:   "q1",
		From: telego.User{ID: 7},
		Data: "r:like:" + token,
	}})

	waitFor(t, "лайк записан", func() bool {
		v, _ := f.store.Get(ctx, "v1")
		return v.HasLiked("u-viewer")
	})
	f.listener.Dispatch("v1")

	waitFor(t, "счётчик в подписи", func() bool { return f.sender.hasEdit("👍 1 лайк") })

	f.sender.mu.Lock()
	answers := append([]string(nil), f.sender.answers...)
	f.sender.mu.Unlock()
	if len(answers) != 1 || answers[0] != "👍 Лайк поставлен" {
		t.Fatalf("ответы на кнопки = %v", answers)
	}
}

func TestUnknownTokenIsStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.links.links[7] = "u-viewer"

	f.bot.handleUpdate(ctx, telego.Update{CallbackQuery: &telego.CallbackQuery{
		ID:   "q1",
		From: telego.User{ID: 7},
		Data: "r:like:zz",
	}})

	f.sender.mu.Lock()
	answers := append([]string(nil), f.sender.answers...)
	f.sender.mu.Unlock()
	if len(answers) != 1 || !strings.Contains(answers[0], "устарела") {
		t.Fatalf("ответы на кнопки = %v", answers)
	}
	if v, _ := f.store.Get(ctx, "v1"); v.HasLiked("u-viewer") {
		t.Fatal("лайк по устаревшей кнопке")
	}
}

func TestMeCommand(t *testing.T) {
	f := newFixture(t)
	f.links.links[7] = "u-ann"
	f.store.videos["v1"].LikedBy = []string{"x", "y"}

	f.bot.handleUpdate(context.Background(), message(telego.ChatTypePrivate, "/me"))

	got := f.sender.lastMessage()
	for _, want := range []string{"👤 Ann", "1 видео", "👍 2 лайка"} {
		if !strings.Contains(got, want) {
			t.Errorf("/me не содержит %q:\n%s", want, got)
		}
	}
}
