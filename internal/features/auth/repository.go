// Package auth — repository.go работает с таблицами credentials,
// auth_sessions и auth_login_attempts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/whistle/internal/common"
	"serotonyl.ru/whistle/internal/features/profiles"
)

// pgUniqueViolation — код ошибки PostgreSQL при нарушении UNIQUE.
const pgUniqueViolation = "23505"

// Repository работает с таблицами авторизации.
type Repository struct {
	db       *pgxpool.Pool
	profiles *profiles.Repository
}

// NewRepository создаёт репозиторий авторизации.
func NewRepository(db *pgxpool.Pool, profiles *profiles.Repository) *Repository {
	return &Repository{db: db, profiles: profiles}
}

// CreateAccount создаёт профиль и учётные данные в одной транзакции.
// Занятый email — common.ErrEmailTaken.
func (r *Repository) CreateAccount(ctx context.Context, p *profiles.Profile, passwordHash string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.profiles.CreateTx(ctx, tx, p); err != nil {
		return mapUnique(err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO credentials (uid, email, password_hash) VALUES ($1, $2, $3)
	`, p.UID, p.Email, passwordHash); err != nil {
		return mapUnique(fmt.Errorf("ошибка сохранения учётных данных: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return nil
}

func mapUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return common.ErrEmailTaken
	}
	return err
}

// GetCredentials возвращает uid и хеш пароля по email.
// Неизвестный email — common.ErrInvalidCredentials.
func (r *Repository) GetCredentials(ctx context.Context, email string) (string, string, error) {
	var uid, hash string
	err := r.db.QueryRow(ctx, `
		SELECT uid, password_hash FROM credentials WHERE email = $1
	`, email).Scan(&uid, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", "", common.ErrInvalidCredentials
	}
	if err != nil {
		return "", "", fmt.Errorf("ошибка чтения учётных данных: %w", err)
	}
	return uid, hash, nil
}

// CreateSession сохраняет новую сессию.
func (r *Repository) CreateSession(ctx context.Context, s *Session) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO auth_sessions (id, uid, expires_at)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, s.ID, s.UID, s.ExpiresAt).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания сессии: %w", err)
	}
	return nil
}

// GetSession возвращает сессию. Отсутствующая — common.ErrSessionExpired.
func (r *Repository) GetSession(ctx context.Context, id string) (*Session, error) {
	var s Session
	err := r.db.QueryRow(ctx, `
		SELECT id, uid, expires_at, revoked, created_at
		FROM auth_sessions
		WHERE id = $1
	`, id).Scan(&s.ID, &s.UID, &s.ExpiresAt, &s.Revoked, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения сессии: %w", err)
	}
	return &s, nil
}

// RevokeSession закрывает сессию.
func (r *Repository) RevokeSession(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `UPDATE auth_sessions SET revoked = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка закрытия сессии: %w", err)
	}
	return nil
}

// LogAttempt записывает попытку входа.
func (r *Repository) LogAttempt(ctx context.Context, email string, success bool) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO auth_login_attempts (email, success) VALUES ($1, $2)
	`, email, success)
	return err
}

// RecentFailures возвращает число неудачных попыток с момента since.
func (r *Repository) RecentFailures(ctx context.Context, email string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM auth_login_attempts
		WHERE email = $1 AND success = FALSE AND attempt_time >= $2
	`, email, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта попыток входа: %w", err)
	}
	return count, nil
}

// PurgeSessions удаляет истёкшие и закрытые сессии.
func (r *Repository) PurgeSessions(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM auth_sessions WHERE revoked = TRUE OR expires_at < NOW()
	`)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки сессий: %w", err)
	}
	return tag.RowsAffected(), nil
}

// PurgeAttempts удаляет попытки входа старше before.
func (r *Repository) PurgeAttempts(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM auth_login_attempts WHERE attempt_time < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("ошибка очистки попыток входа: %w", err)
	}
	return tag.RowsAffected(), nil
}
