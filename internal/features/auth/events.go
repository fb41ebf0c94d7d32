// Package auth — events.go рассылает события входа и выхода.
// Подписчик держит свою подписку сам и сам её отменяет.
package auth

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// eventsBuffer — сколько событий может ждать медленный подписчик.
const eventsBuffer = 32

// Events — рассыльщик StateChange.
type Events struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
}

// NewEvents создаёт рассыльщик.
func NewEvents() *Events {
	return &Events{subs: make(map[uint64]*Subscription)}
}

// Subscription — подписка на события входа и выхода.
type Subscription struct {
	id     uint64
	ch     chan StateChange
	events *Events
	once   sync.Once
}

// C — канал событий. Закрывается после Cancel.
func (s *Subscription) C() <-chan StateChange { return s.ch }

// Cancel отписывается и закрывает канал. Повторный вызов безопасен.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.events.mu.Lock()
		delete(s.events.subs, s.id)
		close(s.ch)
		s.events.mu.Unlock()
	})
}

// Subscribe подписывается на события.
func (e *Events) Subscribe() *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	sub := &Subscription{id: e.nextID, ch: make(chan StateChange, eventsBuffer), events: e}
	e.subs[sub.id] = sub
	return sub
}

// Publish отдаёт событие всем подписчикам. Не блокируется:
// если буфер подписчика полон, событие для него теряется.
func (e *Events) Publish(ev StateChange) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, sub := range e.subs {
		select {
		case sub.ch <- ev:
		default:
			log.WithFields(log.Fields{
				"uid":       ev.UID,
				"signed_in": ev.SignedIn,
			}).Warn("Подписчик не успевает, событие входа потеряно")
		}
	}
}
