// Package reactions — observer.go реализует живую подписку на счётчики видео.
package reactions

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/whistle/internal/common"
	"serotonyl.ru/whistle/internal/db/postgres"
)

// Notifier выдаёт сигналы об изменении документа. Реализуется *postgres.Listener.
type Notifier interface {
	Subscribe(key string) (*postgres.Subscription, error)
}

// Observer открывает подписки на счётчики реакций.
type Observer struct {
	notifier Notifier
	store    Store
}

// NewObserver создаёт наблюдатель.
func NewObserver(notifier Notifier, store Store) *Observer {
	return &Observer{notifier: notifier, store: store}
}

// Subscription — дескриптор одной подписки. Владеет ей вызывающий код.
type Subscription struct {
	videoID string
	cancel  context.CancelFunc
	done    chan struct{}
}

// VideoID — видео, на которое оформлена подписка.
func (s *Subscription) VideoID() string { return s.videoID }

// Cancel останавливает подписку. Повторный вызов безопасен.
// После Cancel колбэки больше не вызываются (кроме уже начатого вызова).
func (s *Subscription) Cancel() { s.cancel() }

// Done закрывается, когда горутина подписки завершилась.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Observe сразу отдаёт текущие счётчики, затем вызывает onUpdate на каждое
// изменение документа видео. Отсутствующий документ пропускается без
// вызова колбэков. onError вызывается не больше одного раза,
// после него подписка завершается. Колбэки вызываются последовательно
// из горутины подписки.
func (o *Observer) Observe(ctx context.Context, videoID string, onUpdate func(likes, dislikes int), onError func(error)) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{videoID: videoID, cancel: cancel, done: make(chan struct{})}

	go o.run(ctx, sub, onUpdate, onError)
	return sub
}

func (o *Observer) run(ctx context.Context, sub *Subscription, onUpdate func(likes, dislikes int), onError func(error)) {
	defer close(sub.done)
	defer sub.cancel()

	logger := log.WithField("video_id", sub.videoID)

	fail := func(err error) {
		if ctx.Err() != nil {
			return
		}
		logger.WithError(err).Warn("Подписка на реакции завершилась с ошибкой")
		if onError != nil {
			onError(err)
		}
	}

	// Сначала подписываемся, потом читаем: изменение между чтением
	// и подпиской не потеряется.
	changes, err := o.notifier.Subscribe(sub.videoID)
	if err != nil {
		fail(err)
		return
	}
	defer changes.Cancel()

	emit := func() bool {
		c, err := o.store.Counts(ctx, sub.videoID)
		if errors.Is(err, common.ErrVideoNotFound) {
			// Документа нет (ещё не создан или удалён): обновления нет, слушаем дальше
			logger.Debug("Видео отсутствует, снимок пропущен")
			return true
		}
		if err != nil {
			fail(err)
			return false
		}
		if ctx.Err() != nil {
			return false
		}
		onUpdate(c.Likes, c.Dislikes)
		return true
	}

	if !emit() {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-changes.Err():
			fail(err)
			return
		case <-changes.Changed():
			if !emit() {
				return
			}
		}
	}
}

// View — «текущее видео на экране»: держит не больше одной подписки.
// Focus на новое видео сначала отменяет предыдущую подписку.
type View struct {
	observer *Observer

	mu      sync.Mutex
	current *Subscription
}

// NewView создаёт пустой View.
func NewView(observer *Observer) *View {
	return &View{observer: observer}
}

// Focus переключает View на videoID.
func (v *View) Focus(ctx context.Context, videoID string, onUpdate func(likes, dislikes int), onError func(error)) *Subscription {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.current != nil {
		v.current.Cancel()
	}
	v.current = v.observer.Observe(ctx, videoID, onUpdate, onError)
	return v.current
}

// Current возвращает активную подписку или nil.
func (v *View) Current() *Subscription {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Close отменяет активную подписку.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.current != nil {
		v.current.Cancel()
		v.current = nil
	}
}
