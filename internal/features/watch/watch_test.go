package watch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"serotonyl.ru/whistle/internal/common"
	"serotonyl.ru/whistle/internal/features/videos"
	"serotonyl.ru/whistle/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestTrackerFinishesOnce(t *testing.T) {
	tests := []struct {
		name   string
		events []Event
		want   []bool
	}{
		{
			name:   "доиграло до конца",
			events: []Event{{Kind: EventReady}, {Kind: EventPlaying, Playing: true}, {Kind: EventEnded}},
			want:   []bool{false, false, true},
		},
		{
			name:   "остановили после ready",
			events: []Event{{Kind: EventReady}, {Kind: EventPlaying, Playing: false}, {Kind: EventEnded}},
			want:   []bool{false, true, false},
		},
		{
			name:   "остановка до ready не считается",
			events: []Event{{Kind: EventBuffering}, {Kind: EventPlaying, Playing: false}, {Kind: EventReady}},
			want:   []bool{false, false, false},
		},
		{
			name:   "ended без ready",
			events: []Event{{Kind: EventEnded}, {Kind: EventEnded}},
			want:   []bool{true, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tr Tracker
			for i, ev := range tt.events {
				if got := tr.Handle(ev); got != tt.want[i] {
					t.Fatalf("событие %d (%s): Handle = %v, want %v", i, ev.Kind, got, tt.want[i])
				}
			}
		})
	}
}

func TestParseEvent(t *testing.T) {
	if ev, err := ParseEvent(" Paused ", true); err != nil || ev.Kind != EventPlaying || ev.Playing {
		t.Fatalf("paused: %+v, %v", ev, err)
	}
	if ev, err := ParseEvent("playing", true); err != nil || !ev.Playing {
		t.Fatalf("playing: %+v, %v", ev, err)
	}
	if _, err := ParseEvent("seek", false); !errors.Is(err, common.ErrUnknownPlaybackEvent) {
		t.Fatalf("seek: err = %v", err)
	}
}

func TestRegistryTTL(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(time.Minute)
	r.now = func() time.Time { return now }

	a := r.Start("u1", "v1")
	b := r.Start("u1", "v2")

	if _, err := r.Touch("u2", a.ID); !errors.Is(err, common.ErrPresentationNotFound) {
		t.Fatalf("чужой показ: err = %v", err)
	}

	now = now.Add(50 * time.Second)
	if _, err := r.Touch("u1", a.ID); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	now = now.Add(30 * time.Second)
	if removed := r.Cleanup(); removed != 1 {
		t.Fatalf("Cleanup = %d, want 1", removed)
	}
	if _, err := r.Touch("u1", b.ID); !errors.Is(err, common.ErrPresentationNotFound) {
		t.Fatalf("истёкший показ: err = %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
}

type memStore struct {
	mu      sync.Mutex
	watched map[string]int
	err     error
}

func (m *memStore) IncrementWatched(_ context.Context, uid string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.watched[uid]++
	return m.watched[uid], nil
}

type fakeVideos map[string]bool

func (f fakeVideos) Get(_ context.Context, id string) (*videos.Video, error) {
	if !f[id] {
		return nil, common.ErrVideoNotFound
	}
	return &videos.Video{ID: id}, nil
}

type countingRefresher struct {
	mu   sync.Mutex
	uids []string
}

func (c *countingRefresher) Refresh(_ context.Context, uid string) {
	c.mu.Lock()
	c.uids = append(c.uids, uid)
	c.mu.Unlock()
}

func TestServiceCountsWatchOnce(t *testing.T) {
	ctx := context.Background()
	store := &memStore{watched: map[string]int{}}
	refresher := &countingRefresher{}
	svc := NewService(NewRegistry(time.Hour), store, fakeVideos{"v1": true}, refresher)

	if _, err := svc.Start(ctx, "u1", "missing"); !errors.Is(err, common.ErrVideoNotFound) {
		t.Fatalf("Start(missing): err = %v", err)
	}

	p, err := svc.Start(ctx, "u1", "v1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	for _, ev := range []Event{{Kind: EventReady}, {Kind: EventEnded}, {Kind: EventPlaying, Playing: false}} {
		if _, err := svc.HandleEvent(ctx, "u1", p.ID, ev); err != nil {
			t.Fatalf("HandleEvent(%s): %v", ev.Kind, err)
		}
	}

	if store.watched["u1"] != 1 {
		t.Fatalf("videos_watched = %d, want 1", store.watched["u1"])
	}
	if len(refresher.uids) != 1 || refresher.uids[0] != "u1" {
		t.Fatalf("Refresh вызван для %v", refresher.uids)
	}
}

func TestServiceDropsRecordFailure(t *testing.T) {
	ctx := context.Background()
	store := &memStore{watched: map[string]int{}, err: errors.New("db down")}
	svc := NewService(NewRegistry(time.Hour), store, fakeVideos{"v1": true}, nil)

	p, _ := svc.Start(ctx, "u1", "v1")
	res, err := svc.HandleEvent(ctx, "u1", p.ID, Event{Kind: EventEnded})
	if err != nil {
		t.Fatalf("ошибка записи не должна доходить до клиента: %v", err)
	}
	if !res.Counted || !res.Finished {
		t.Fatalf("res = %+v", res)
	}
}

type tokenAuth struct{}

func (tokenAuth) Authenticate(_ context.Context, token string) (string, string, error) {
	return token, "s-" + token, nil
}

func TestPlaybackHandlers(t *testing.T) {
	store := &memStore{watched: map[string]int{}}
	h := NewHandler(NewService(NewRegistry(time.Hour), store, fakeVideos{"v1": true}, nil))

	r := gin.New()
	api := r.Group("/api", middleware.RequireAuth(tokenAuth{}))
	api.POST("/playback", h.Start)
	api.POST("/playback/:presentation/events", h.Event)

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer u1")
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := post("/api/playback", `{"videoId":"v1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("start: status = %d (%s)", w.Code, w.Body.String())
	}
	var p Presentation
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil || p.ID == "" {
		t.Fatalf("start body = %s, err = %v", w.Body.String(), err)
	}

	if w := post("/api/playback/"+p.ID+"/events", `{"event":"rewind"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown event: status = %d", w.Code)
	}
	if w := post("/api/playback/nope/events", `{"event":"ready"}`); w.Code != http.StatusNotFound {
		t.Fatalf("unknown presentation: status = %d", w.Code)
	}

	post("/api/playback/"+p.ID+"/events", `{"event":"ready"}`)
	w = post("/api/playback/"+p.ID+"/events", `{"event":"playing","playing":false}`)
	var res EventResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil || !res.Counted {
		t.Fatalf("pause after ready: body = %s, err = %v", w.Body.String(), err)
	}
	if store.watched["u1"] != 1 {
		t.Fatalf("videos_watched = %d, want 1", store.watched["u1"])
	}
}
