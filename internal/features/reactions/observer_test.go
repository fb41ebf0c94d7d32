package reactions

import (
	"context"
	"errors"
	"testing"
	"time"

	"serotonyl.ru/whistle/internal/db/postgres"
)

const waitTimeout = 2 * time.Second

type update struct{ likes, dislikes int }

func collect() (chan update, func(likes, dislikes int)) {
	ch := make(chan update, 16)
	return ch, func(likes, dislikes int) { ch <- update{likes, dislikes} }
}

func expectUpdate(t *testing.T, ch <-chan update, want update) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("update = %+v, want %+v", got, want)
		}
	case <-time.After(waitTimeout):
		t.Fatalf("не дождались обновления %+v", want)
	}
}

func waitSubscribers(t *testing.T, l *postgres.Listener, n int) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for l.Subscribers() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Subscribers = %d, want %d", l.Subscribers(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestObserveInitialAndChanges(t *testing.T) {
	store := newMemStore("v1")
	listener := postgres.NewListener(nil, "video_changes")
	obs := NewObserver(listener, store)
	svc := NewService(store)
	ctx := context.Background()

	updates, onUpdate := collect()
	sub := obs.Observe(ctx, "v1", onUpdate, func(err error) { t.Errorf("onError: %v", err) })
	defer sub.Cancel()

	expectUpdate(t, updates, update{0, 0})
	waitSubscribers(t, listener, 1)

	svc.Toggle(ctx, Like, store.snapshot("v1"), "u1")
	listener.Dispatch("v1")
	expectUpdate(t, updates, update{1, 0})

	svc.Toggle(ctx, Dislike, store.snapshot("v1"), "u1")
	listener.Dispatch("v1")
	expectUpdate(t, updates, update{0, 1})

	// Изменения другого видео не приходят
	listener.Dispatch("v2")
	select {
	case got := <-updates:
		t.Fatalf("лишнее обновление %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestObserveCancel(t *testing.T) {
	store := newMemStore("v1")
	listener := postgres.NewListener(nil, "video_changes")
	obs := NewObserver(listener, store)

	updates, onUpdate := collect()
	sub := obs.Observe(context.Background(), "v1", onUpdate, nil)
	expectUpdate(t, updates, update{0, 0})

	sub.Cancel()
	sub.Cancel()

	select {
	case <-sub.Done():
	case <-time.After(waitTimeout):
		t.Fatal("подписка не завершилась после Cancel")
	}
	if n := listener.Subscribers(); n != 0 {
		t.Fatalf("Subscribers после Cancel = %d", n)
	}
}

func TestObserveErrorOnce(t *testing.T) {
	store := newMemStore("v1")
	listener := postgres.NewListener(nil, "video_changes")
	obs := NewObserver(listener, store)

	updates, onUpdate := collect()
	errs := make(chan error, 4)
	sub := obs.Observe(context.Background(), "v1", onUpdate, func(err error) { errs <- err })
	defer sub.Cancel()

	expectUpdate(t, updates, update{0, 0})
	waitSubscribers(t, listener, 1)

	store.mu.Lock()
	store.failRead = true
	store.mu.Unlock()
	listener.Dispatch("v1")

	select {
	case err := <-errs:
		if err == nil {
			t.Fatal("ожидали ошибку")
		}
	case <-time.After(waitTimeout):
		t.Fatal("onError не вызван")
	}

	select {
	case <-sub.Done():
	case <-time.After(waitTimeout):
		t.Fatal("подписка не завершилась после ошибки")
	}

	listener.Dispatch("v1")
	if len(errs) != 0 {
		t.Fatalf("onError вызван повторно: %d", len(errs))
	}
}

func TestObserveSkipsMissingVideo(t *testing.T) {
	store := newMemStore("v1")
	listener := postgres.NewListener(nil, "video_changes")
	obs := NewObserver(listener, store)

	updates, onUpdate := collect()
	errs := make(chan error, 4)

	// Видео ещё нет: ни обновления, ни ошибки, подписка жива
	ghost := obs.Observe(context.Background(), "ghost", onUpdate, func(err error) { errs <- err })
	defer ghost.Cancel()
	waitSubscribers(t, listener, 1)

	listener.Dispatch("ghost")
	select {
	case got := <-updates:
		t.Fatalf("обновление для отсутствующего видео: %+v", got)
	case err := <-errs:
		t.Fatalf("onError для отсутствующего видео: %v", err)
	case <-ghost.Done():
		t.Fatal("подписка завершилась из-за отсутствующего видео")
	case <-time.After(50 * time.Millisecond):
	}

	// Видео удалили во время подписки
	sub := obs.Observe(context.Background(), "v1", onUpdate, func(err error) { errs <- err })
	defer sub.Cancel()
	expectUpdate(t, updates, update{0, 0})
	waitSubscribers(t, listener, 2)

	store.mu.Lock()
	delete(store.videos, "v1")
	store.mu.Unlock()
	listener.Dispatch("v1")

	select {
	case got := <-updates:
		t.Fatalf("обновление после удаления: %+v", got)
	case err := <-errs:
		t.Fatalf("onError после удаления: %v", err)
	case <-sub.Done():
		t.Fatal("подписка завершилась после удаления видео")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestObserveSubscribeFailure(t *testing.T) {
	store := newMemStore("v1")
	listener := postgres.NewListener(nil, "video_changes")
	// Остановленный слушатель отказывает в подписке
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	listener.Run(ctx)

	obs := NewObserver(listener, store)
	errs := make(chan error, 1)
	sub := obs.Observe(context.Background(), "v1", func(int, int) { t.Error("onUpdate не должен вызываться") }, func(err error) { errs <- err })

	select {
	case err := <-errs:
		if !errors.Is(err, postgres.ErrListenerClosed) {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("onError не вызван")
	}
	<-sub.Done()
}

func TestViewFocusCancelsPrevious(t *testing.T) {
	store := newMemStore("v1", "v2")
	listener := postgres.NewListener(nil, "video_changes")
	view := NewView(NewObserver(listener, store))
	defer view.Close()
	ctx := context.Background()

	first, onFirst := collect()
	sub1 := view.Focus(ctx, "v1", onFirst, nil)
	expectUpdate(t, first, update{0, 0})

	second, onSecond := collect()
	sub2 := view.Focus(ctx, "v2", onSecond, nil)
	expectUpdate(t, second, update{0, 0})

	select {
	case <-sub1.Done():
	case <-time.After(waitTimeout):
		t.Fatal("предыдущая подписка не отменена")
	}
	waitSubscribers(t, listener, 1)

	if view.Current() != sub2 || sub2.VideoID() != "v2" {
		t.Fatal("Current должен указывать на подписку v2")
	}

	listener.Dispatch("v1")
	select {
	case got := <-first:
		t.Fatalf("отменённая подписка получила %+v", got)
	case <-time.After(50 * time.Millisecond):
	}

	view.Close()
	<-sub2.Done()
	if view.Current() != nil {
		t.Fatal("после Close подписки быть не должно")
	}
}
