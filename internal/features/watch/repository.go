// Package watch — repository.go обновляет счётчик videos_watched в профиле.
package watch

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/whistle/internal/common"
)

// Repository работает со счётчиком просмотров.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий просмотров.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// IncrementWatched увеличивает videos_watched на 1 и возвращает новое значение.
// Чтение и запись в одной транзакции с блокировкой строки.
func (r *Repository) IncrementWatched(ctx context.Context, uid string) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var watched int
	err = tx.QueryRow(ctx, `
		SELECT videos_watched FROM profiles WHERE uid = $1 FOR UPDATE
	`, uid).Scan(&watched)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, common.ErrProfileNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения счётчика просмотров: %w", err)
	}

	watched++
	if _, err := tx.Exec(ctx, `
		UPDATE profiles SET videos_watched = $2, updated_at = NOW() WHERE uid = $1
	`, uid, watched); err != nil {
		return 0, fmt.Errorf("ошибка обновления счётчика просмотров: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return watched, nil
}
