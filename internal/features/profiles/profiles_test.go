package profiles

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"serotonyl.ru/whistle/internal/common"
	"serotonyl.ru/whistle/internal/config"
	"serotonyl.ru/whistle/internal/media"
)

type memStore struct {
	mu       sync.Mutex
	profiles map[string]*Profile
	gets     int
	fail     bool
	release  chan struct{} // если задан, Get ждёт его
}

func newMemStore(ps ...*Profile) *memStore {
	m := &memStore{profiles: make(map[string]*Profile)}
	for _, p := range ps {
		m.profiles[p.UID] = p
	}
	return m
}

func (m *memStore) Get(_ context.Context, uid string) (*Profile, error) {
	if m.release != nil {
		<-m.release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.fail {
		return nil, errors.New("store down")
	}
	p, ok := m.profiles[uid]
	if !ok {
		return nil, common.ErrProfileNotFound
	}
	return p.Clone(), nil
}

func (m *memStore) UpdateName(_ context.Context, uid, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[uid]
	if !ok {
		return common.ErrProfileNotFound
	}
	p.Name = name
	return nil
}

func (m *memStore) UpdatePicture(_ context.Context, uid, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[uid]
	if !ok {
		return common.ErrProfileNotFound
	}
	p.ProfilePictureURL = &url
	return nil
}

func (m *memStore) getCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

func alice() *Profile {
	return &Profile{UID: "alice", Name: "Alice", Email: "alice@example.com", Uploads: []string{"v1"}}
}

func TestCacheMissFillsAsyncAndBroadcasts(t *testing.T) {
	store := newMemStore(alice())
	cache := NewCache(store)
	sub := cache.Subscribe()
	defer sub.Cancel()

	if _, ok := cache.Get(context.Background(), "alice"); ok {
		t.Fatal("первый Get должен быть промахом")
	}

	select {
	case snapshot := <-sub.Updates():
		if p, ok := snapshot["alice"]; !ok || p.Name != "Alice" {
			t.Fatalf("snapshot = %+v", snapshot)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("карта не разослана после загрузки")
	}

	p, ok := cache.Get(context.Background(), "alice")
	if !ok || p.Email != "alice@example.com" {
		t.Fatalf("после загрузки Get = %+v, %v", p, ok)
	}
}

func TestCacheDedupesInflightFetch(t *testing.T) {
	store := newMemStore(alice())
	store.release = make(chan struct{})
	cache := NewCache(store)

	for i := 0; i < 5; i++ {
		cache.Get(context.Background(), "alice")
	}
	close(store.release)
	cache.Wait()

	if n := store.getCount(); n != 1 {
		t.Fatalf("загрузок = %d, want 1", n)
	}
	if cache.Len() != 1 {
		t.Fatalf("Len = %d", cache.Len())
	}
}

func TestCacheFetchFailureIsDropped(t *testing.T) {
	store := newMemStore(alice())
	store.fail = true
	cache := NewCache(store)

	cache.Get(context.Background(), "alice")
	cache.Wait()

	if cache.Len() != 0 {
		t.Fatal("неудачная загрузка не должна попадать в кеш")
	}

	// После ошибки следующий промах снова пытается загрузить
	store.mu.Lock()
	store.fail = false
	store.mu.Unlock()
	cache.Get(context.Background(), "alice")
	cache.Wait()
	if _, ok := cache.Get(context.Background(), "alice"); !ok {
		t.Fatal("повторная загрузка не сработала")
	}
}

// slowFetcher: первая загрузка ждёт release и отдаёт старую версию профиля.
type slowFetcher struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
	stale   *Profile
	fresh   *Profile
}

func (f *slowFetcher) Get(context.Context, string) (*Profile, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if n == 1 {
		<-f.release
		return f.stale.Clone(), nil
	}
	return f.fresh.Clone(), nil
}

func (f *slowFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestCacheAsyncFillKeepsNewerRefresh(t *testing.T) {
	fresh := alice()
	fresh.Name = "Alice Renamed"
	fetcher := &slowFetcher{release: make(chan struct{}), stale: alice(), fresh: fresh}
	cache := NewCache(fetcher)

	cache.Get(context.Background(), "alice")
	deadline := time.Now().Add(2 * time.Second)
	for fetcher.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("фоновая загрузка не началась")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := cache.Refresh(context.Background(), "alice"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	close(fetcher.release)
	cache.Wait()

	p, ok := cache.Get(context.Background(), "alice")
	if !ok || p.Name != "Alice Renamed" {
		t.Fatalf("после фоновой загрузки Get = %+v, %v", p, ok)
	}
}

func TestCacheReturnsCopies(t *testing.T) {
	cache := NewCache(newMemStore(alice()))
	p, err := cache.Load(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	p.Name = "Mallory"
	p.Uploads[0] = "hacked"

	again, _ := cache.Get(context.Background(), "alice")
	if again.Name != "Alice" || again.Uploads[0] != "v1" {
		t.Fatalf("кеш изменён через возвращённую копию: %+v", again)
	}

	snap := cache.Snapshot()
	entry := snap["alice"]
	entry.Uploads[0] = "hacked"
	if again2, _ := cache.Get(context.Background(), "alice"); again2.Uploads[0] != "v1" {
		t.Fatal("Snapshot делит память с кешем")
	}
}

func TestCacheSubscriptionCancel(t *testing.T) {
	cache := NewCache(newMemStore(alice()))
	sub := cache.Subscribe()
	sub.Cancel()
	sub.Cancel()

	cache.Put(alice())
	select {
	case <-sub.Updates():
		t.Fatal("отписанный подписчик получил карту")
	default:
	}
}

func TestLoadMissingProfile(t *testing.T) {
	cache := NewCache(newMemStore())
	if _, err := cache.Load(context.Background(), "ghost"); !errors.Is(err, common.ErrProfileNotFound) {
		t.Fatalf("err = %v", err)
	}
}

type fakeUploader struct{ opts media.UploadOptions }

func (f *fakeUploader) Upload(_ context.Context, r io.Reader, opts media.UploadOptions) (*media.UploadResult, error) {
	f.opts = opts
	_, _ = io.Copy(io.Discard, r)
	return &media.UploadResult{PublicID: "avatars/alice", SecureURL: "https://cdn.example.com/avatars/alice.png"}, nil
}

func (f *fakeUploader) Delete(context.Context, string, string) error { return nil }

func TestServiceUpdateName(t *testing.T) {
	store := newMemStore(alice())
	cache := NewCache(store)
	svc := NewService(store, cache, &fakeUploader{}, &config.Config{})
	ctx := context.Background()

	if _, err := cache.Load(ctx, "alice"); err != nil {
		t.Fatal(err)
	}

	p, err := svc.UpdateName(ctx, "alice", "  Алиса  ")
	if err != nil {
		t.Fatalf("UpdateName: %v", err)
	}
	if p.Name != "Алиса" {
		t.Errorf("Name = %q", p.Name)
	}
	if cached, _ := cache.Get(ctx, "alice"); cached.Name != "Алиса" {
		t.Errorf("кеш не обновлён: %q", cached.Name)
	}

	if _, err := svc.UpdateName(ctx, "alice", "   "); !errors.Is(err, common.ErrInvalidName) {
		t.Errorf("пустое имя: err = %v", err)
	}
	if _, err := svc.UpdateName(ctx, "alice", strings.Repeat("я", 65)); !errors.Is(err, common.ErrInvalidName) {
		t.Errorf("длинное имя: err = %v", err)
	}
	if _, err := svc.UpdateName(ctx, "ghost", "Ghost"); !errors.Is(err, common.ErrProfileNotFound) {
		t.Errorf("нет профиля: err = %v", err)
	}
}

func TestServiceUpdatePicture(t *testing.T) {
	store := newMemStore(alice())
	up := &fakeUploader{}
	svc := NewService(store, NewCache(store), up, &config.Config{CloudinaryImagePreset: "profile_pic_upload"})

	p, err := svc.UpdatePicture(context.Background(), "alice", strings.NewReader("png"), "me.png")
	if err != nil {
		t.Fatalf("UpdatePicture: %v", err)
	}
	if p.ProfilePictureURL == nil || *p.ProfilePictureURL != "https://cdn.example.com/avatars/alice.png" {
		t.Errorf("ProfilePictureURL = %v", p.ProfilePictureURL)
	}
	if up.opts.Preset != "profile_pic_upload" || up.opts.ResourceType != media.ResourceImage {
		t.Errorf("opts = %+v", up.opts)
	}
}

func TestNewProfile(t *testing.T) {
	p, err := NewProfile("u1", " Bob ", " Bob@Example.COM ")
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	if p.Name != "Bob" || p.Email != "bob@example.com" || p.Uploads == nil || p.TotalAura != 0 {
		t.Errorf("profile = %+v", p)
	}
	if _, err := NewProfile("u1", "", "x@y.z"); !errors.Is(err, common.ErrInvalidName) {
		t.Errorf("err = %v", err)
	}
}
