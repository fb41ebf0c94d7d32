package postgres

import (
	"errors"
	"testing"
)

func TestListenerDispatchCoalesces(t *testing.T) {
	l := NewListener(nil, "video_changes")

	sub, err := l.Subscribe("v1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	other, _ := l.Subscribe("v2")

	l.Dispatch("v1")
	l.Dispatch("v1")
	l.Dispatch("v1")

	select {
	case <-sub.Changed():
	default:
		t.Fatal("ожидали сигнал для v1")
	}
	select {
	case <-sub.Changed():
		t.Fatal("сигналы должны схлопываться в один")
	default:
	}
	select {
	case <-other.Changed():
		t.Fatal("v2 не должен получать сигналы v1")
	default:
	}
}

func TestListenerCancel(t *testing.T) {
	l := NewListener(nil, "video_changes")

	sub, _ := l.Subscribe("v1")
	if got := l.Subscribers(); got != 1 {
		t.Fatalf("Subscribers = %d, want 1", got)
	}

	sub.Cancel()
	sub.Cancel()

	if got := l.Subscribers(); got != 0 {
		t.Fatalf("Subscribers после Cancel = %d, want 0", got)
	}

	l.Dispatch("v1")
	select {
	case <-sub.Changed():
		t.Fatal("отменённая подписка не должна получать сигналы")
	default:
	}
}

func TestListenerFailAllDeliversErrorOnce(t *testing.T) {
	l := NewListener(nil, "video_changes")

	a, _ := l.Subscribe("v1")
	b, _ := l.Subscribe("v2")

	boom := errors.New("boom")
	l.failAll(boom)
	l.failAll(boom)

	for _, sub := range []*Subscription{a, b} {
		select {
		case err := <-sub.Err():
			if !errors.Is(err, boom) {
				t.Fatalf("err = %v", err)
			}
		default:
			t.Fatal("ожидали ошибку подписки")
		}
		select {
		case <-sub.Err():
			t.Fatal("ошибка должна прийти один раз")
		default:
		}
	}

	if got := l.Subscribers(); got != 0 {
		t.Fatalf("Subscribers = %d, want 0", got)
	}
}

func TestListenerClosedRejectsSubscribe(t *testing.T) {
	l := NewListener(nil, "video_changes")
	l.close()

	if _, err := l.Subscribe("v1"); !errors.Is(err, ErrListenerClosed) {
		t.Fatalf("Subscribe после close: err = %v", err)
	}
}
