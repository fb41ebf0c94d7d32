// Package postgres — listener.go реализует подписки на изменения документов
// через LISTEN/NOTIFY. Триггер в БД шлёт pg_notify(channel, <id документа>),
// слушатель держит одно выделенное соединение и раздаёт сигналы подписчикам.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// ErrListenerClosed — слушатель остановлен, новые подписки не принимаются.
var ErrListenerClosed = errors.New("слушатель изменений остановлен")

// Subscription — подписка на изменения одного документа.
//
// Changed() — сигналы об изменениях. Буфер 1: несколько изменений подряд
// схлопываются в один сигнал, подписчик всё равно перечитывает документ целиком.
// Err() — получает не больше одной ошибки, после неё подписка мертва.
type Subscription struct {
	key     string
	id      uint64
	changed chan struct{}
	errs    chan error
	owner   *Listener
	once    sync.Once
}

// Changed возвращает канал сигналов об изменении документа.
func (s *Subscription) Changed() <-chan struct{} { return s.changed }

// Err возвращает канал с ошибкой подписки.
func (s *Subscription) Err() <-chan error { return s.errs }

// Cancel отписывается. Повторный вызов безопасен.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		if s.owner != nil {
			s.owner.remove(s)
		}
	})
}

// Listener держит LISTEN на одном канале и раздаёт уведомления по ключу (payload).
type Listener struct {
	pool         *pgxpool.Pool
	channel      string
	retryBackoff time.Duration

	mu     sync.Mutex
	subs   map[string]map[uint64]*Subscription
	nextID uint64
	closed bool
}

// NewListener создаёт слушатель канала channel. pool может быть nil в тестах —
// тогда Run не вызывается, а уведомления подаются через Dispatch.
func NewListener(pool *pgxpool.Pool, channel string) *Listener {
	return &Listener{
		pool:         pool,
		channel:      channel,
		retryBackoff: 5 * time.Second,
		subs:         make(map[string]map[uint64]*Subscription),
	}
}

// Subscribe подписывается на изменения документа key.
func (l *Listener) Subscribe(key string) (*Subscription, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrListenerClosed
	}

	l.nextID++
	sub := &Subscription{
		key:     key,
		id:      l.nextID,
		changed: make(chan struct{}, 1),
		errs:    make(chan error, 1),
		owner:   l,
	}
	if l.subs[key] == nil {
		l.subs[key] = make(map[uint64]*Subscription)
	}
	l.subs[key][sub.id] = sub
	return sub, nil
}

func (l *Listener) remove(sub *Subscription) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if m, ok := l.subs[sub.key]; ok {
		delete(m, sub.id)
		if len(m) == 0 {
			delete(l.subs, sub.key)
		}
	}
}

// Dispatch доставляет сигнал всем подписчикам ключа. Не блокируется.
func (l *Listener) Dispatch(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, sub := range l.subs[key] {
		select {
		case sub.changed <- struct{}{}:
		default:
			// сигнал уже ждёт обработки — этого достаточно
		}
	}
}

// failAll отдаёт ошибку всем текущим подписчикам и забывает их.
// Новые подписки после этого продолжают работать на следующем соединении.
func (l *Listener) failAll(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, m := range l.subs {
		for _, sub := range m {
			select {
			case sub.errs <- err:
			default:
			}
		}
		delete(l.subs, key)
	}
}

// Subscribers возвращает число активных подписок (для логов и тестов).
func (l *Listener) Subscribers() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, m := range l.subs {
		n += len(m)
	}
	return n
}

// Run слушает канал до отмены ctx. При обрыве соединения все текущие
// подписки получают ошибку, а слушатель переподключается через retryBackoff.
func (l *Listener) Run(ctx context.Context) {
	log.WithField("channel", l.channel).Info("Слушатель изменений запущен")

	for {
		if ctx.Err() != nil {
			l.close()
			log.WithField("channel", l.channel).Info("Слушатель изменений остановлен")
			return
		}

		err := l.listenOnce(ctx)
		if ctx.Err() != nil {
			continue
		}

		log.WithError(err).WithField("channel", l.channel).Error("Слушатель изменений упал, переподключаемся")
		l.failAll(fmt.Errorf("подписка на изменения прервана: %w", err))

		select {
		case <-ctx.Done():
		case <-time.After(l.retryBackoff):
		}
	}
}

func (l *Listener) close() {
	l.failAll(ErrListenerClosed)

	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

func (l *Listener) listenOnce(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("не удалось получить соединение: %w", err)
	}
	defer func() {
		// Соединение вернётся в пул, поэтому снимаем LISTEN
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(cleanupCtx, "UNLISTEN *"); err != nil {
			conn.Conn().Close(cleanupCtx)
		}
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("ошибка LISTEN: %w", err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"channel": n.Channel,
			"key":     n.Payload,
		}).Debug("Уведомление об изменении")
		l.Dispatch(n.Payload)
	}
}
