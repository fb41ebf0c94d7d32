// Package watch — registry.go хранит активные показы в памяти.
// Показ без событий дольше ttl удаляется при очередной чистке.
package watch

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"serotonyl.ru/whistle/internal/common"
)

// Registry — активные показы по id.
type Registry struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	items map[string]*Presentation
}

// NewRegistry создаёт реестр показов.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]*Presentation),
	}
}

// Start регистрирует новый показ видео videoID пользователю uid.
func (r *Registry) Start(uid, videoID string) *Presentation {
	now := r.now()
	p := &Presentation{
		ID:        uuid.NewString(),
		UID:       uid,
		VideoID:   videoID,
		StartedAt: now,
		lastSeen:  now,
	}

	r.mu.Lock()
	r.items[p.ID] = p
	r.mu.Unlock()
	return p
}

// Touch возвращает показ и продлевает ему жизнь.
// Чужой или истёкший показ — ErrPresentationNotFound.
func (r *Registry) Touch(uid, id string) (*Presentation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[id]
	if !ok || p.UID != uid {
		return nil, common.ErrPresentationNotFound
	}

	now := r.now()
	if now.Sub(p.lastSeen) > r.ttl {
		delete(r.items, id)
		return nil, common.ErrPresentationNotFound
	}
	p.lastSeen = now
	return p, nil
}

// Cleanup удаляет истёкшие показы. Возвращает число удалённых.
func (r *Registry) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for id, p := range r.items {
		if now.Sub(p.lastSeen) > r.ttl {
			delete(r.items, id)
			removed++
		}
	}
	return removed
}

// Len возвращает число активных показов.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}
