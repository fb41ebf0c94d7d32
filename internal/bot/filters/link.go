// Package filters решает, кого бот обслуживает.
// Бот отвечает только пользователям, привязавшим Telegram к профилю через /link.
package filters

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/whistle/internal/common"
)

// LinkStore хранит связки telegram_user_id → uid.
type LinkStore interface {
	UIDFor(ctx context.Context, telegramUserID int64) (string, error)
	Link(ctx context.Context, telegramUserID int64, uid string) error
}

// LinkRepository работает с таблицей telegram_links.
type LinkRepository struct {
	db *pgxpool.Pool
}

// NewLinkRepository создаёт репозиторий привязок.
func NewLinkRepository(db *pgxpool.Pool) *LinkRepository {
	return &LinkRepository{db: db}
}

// UIDFor возвращает uid привязанного профиля. Нет привязки — common.ErrNotLinked.
func (r *LinkRepository) UIDFor(ctx context.Context, telegramUserID int64) (string, error) {
	var uid string
	err := r.db.QueryRow(ctx, `
		SELECT uid FROM telegram_links WHERE telegram_user_id = $1
	`, telegramUserID).Scan(&uid)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", common.ErrNotLinked
	}
	if err != nil {
		return "", fmt.Errorf("ошибка чтения привязки: %w", err)
	}
	return uid, nil
}

// Link привязывает Telegram-аккаунт к профилю (повторная привязка перезаписывает).
func (r *LinkRepository) Link(ctx context.Context, telegramUserID int64, uid string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO telegram_links (telegram_user_id, uid)
		VALUES ($1, $2)
		ON CONFLICT (telegram_user_id) DO UPDATE SET uid = EXCLUDED.uid, linked_at = NOW()
	`, telegramUserID, uid)
	if err != nil {
		return fmt.Errorf("ошибка сохранения привязки: %w", err)
	}
	return nil
}

// LinkFilter проверяет привязку и помнит уже найденные.
type LinkFilter struct {
	store LinkStore

	mu    sync.RWMutex
	known map[int64]string
}

// NewLinkFilter создаёт фильтр.
func NewLinkFilter(store LinkStore) *LinkFilter {
	return &LinkFilter{store: store, known: make(map[int64]string)}
}

// Resolve возвращает uid пользователя Telegram или common.ErrNotLinked.
func (f *LinkFilter) Resolve(ctx context.Context, telegramUserID int64) (string, error) {
	f.mu.RLock()
	uid, ok := f.known[telegramUserID]
	f.mu.RUnlock()
	if ok {
		return uid, nil
	}

	uid, err := f.store.UIDFor(ctx, telegramUserID)
	if err != nil {
		if !errors.Is(err, common.ErrNotLinked) {
			log.WithError(err).WithFields(log.Fields{
				"component": "LinkFilter",
				"user_id":   telegramUserID,
			}).Error("link check failed (db)")
		}
		return "", err
	}

	f.mu.Lock()
	f.known[telegramUserID] = uid
	f.mu.Unlock()
	return uid, nil
}

// Link сохраняет привязку.
func (f *LinkFilter) Link(ctx context.Context, telegramUserID int64, uid string) error {
	if err := f.store.Link(ctx, telegramUserID, uid); err != nil {
		return err
	}

	f.mu.Lock()
	f.known[telegramUserID] = uid
	f.mu.Unlock()

	log.WithFields(log.Fields{
		"component": "LinkFilter",
		"user_id":   telegramUserID,
		"uid":       uid,
	}).Info("Telegram-аккаунт привязан")
	return nil
}
