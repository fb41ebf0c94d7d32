// Package aura — repository.go выполняет операции с total_aura и журналом aura_log.
// Изменение ауры, выдача награды и запись в журнал — одна транзакция БД.
package aura

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/whistle/internal/common"
)

// Repository работает с аурой.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий ауры.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Increment меняет ауру uid на delta. Если итог достиг threshold —
// в той же транзакции выдаёт награду и списывает порог.
func (r *Repository) Increment(ctx context.Context, uid, fromUID string, delta, threshold int) (*Result, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Блокируем строку профиля (FOR UPDATE), чтобы параллельные изменения не потерялись
	var total, awards int
	err = tx.QueryRow(ctx, `
		SELECT total_aura, awards_available FROM profiles WHERE uid = $1 FOR UPDATE
	`, uid).Scan(&total, &awards)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ауры: %w", err)
	}

	newTotal, newAwards, awarded := applyDelta(total, awards, delta, threshold)

	_, err = tx.Exec(ctx, `
		UPDATE profiles
		SET total_aura = $2, awards_available = $3, updated_at = NOW()
		WHERE uid = $1
	`, uid, newTotal, newAwards)
	if err != nil {
		return nil, fmt.Errorf("ошибка обновления ауры: %w", err)
	}

	var from *string
	if fromUID != "" {
		from = &fromUID
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO aura_log (uid, delta, reason, from_uid) VALUES ($1, $2, $3, $4)
	`, uid, delta, ReasonGift, from); err != nil {
		return nil, fmt.Errorf("ошибка записи в журнал ауры: %w", err)
	}

	if awarded {
		if _, err := tx.Exec(ctx, `
			INSERT INTO aura_log (uid, delta, reason) VALUES ($1, $2, $3)
		`, uid, -threshold, ReasonAward); err != nil {
			return nil, fmt.Errorf("ошибка записи награды в журнал: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}

	return &Result{UID: uid, TotalAura: newTotal, AwardsAvailable: newAwards, Awarded: awarded}, nil
}

// History возвращает последние limit записей журнала.
func (r *Repository) History(ctx context.Context, uid string, limit int) ([]*LogEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, uid, delta, reason, from_uid, created_at
		FROM aura_log
		WHERE uid = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, uid, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения журнала ауры: %w", err)
	}
	defer rows.Close()

	var entries []*LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.UID, &e.Delta, &e.Reason, &e.FromUID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи ауры: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
