// Package profiles — repository.go выполняет операции с таблицей profiles.
package profiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/whistle/internal/common"
)

// Repository работает с таблицей profiles.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий профилей.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Get возвращает профиль. Отсутствующая строка — common.ErrProfileNotFound.
func (r *Repository) Get(ctx context.Context, uid string) (*Profile, error) {
	query := `
		SELECT uid, name, email, profile_picture_url, total_aura, likes_received,
		       awards_available, awards_received, uploads, videos_watched,
		       created_at, updated_at
		FROM profiles
		WHERE uid = $1
	`
	var p Profile
	err := r.db.QueryRow(ctx, query, uid).Scan(
		&p.UID, &p.Name, &p.Email, &p.ProfilePictureURL, &p.TotalAura, &p.LikesReceived,
		&p.AwardsAvailable, &p.AwardsReceived, &p.Uploads, &p.VideosWatched,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrProfileNotFound
		}
		return nil, fmt.Errorf("ошибка чтения профиля (uid=%s): %w", uid, err)
	}
	if p.Uploads == nil {
		p.Uploads = []string{}
	}
	return &p, nil
}

// UpdateName меняет имя.
func (r *Repository) UpdateName(ctx context.Context, uid, name string) error {
	return r.exec(ctx, `UPDATE profiles SET name = $2, updated_at = NOW() WHERE uid = $1`, uid, name)
}

// UpdatePicture сохраняет URL аватарки.
func (r *Repository) UpdatePicture(ctx context.Context, uid, url string) error {
	return r.exec(ctx, `UPDATE profiles SET profile_picture_url = $2, updated_at = NOW() WHERE uid = $1`, uid, url)
}

// CreateTx вставляет новый профиль внутри чужой транзакции:
// при регистрации профиль и учётные данные создаются вместе.
func (r *Repository) CreateTx(ctx context.Context, tx pgx.Tx, p *Profile) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO profiles (uid, name, email)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`, p.UID, p.Name, p.Email).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания профиля: %w", err)
	}
	return nil
}

// ResyncLikesReceived пересчитывает likes_received из множеств liked_by
// видео каждого автора. Возвращает uid профилей, у которых счётчик изменился.
func (r *Repository) ResyncLikesReceived(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE profiles p
		SET likes_received = s.total, updated_at = NOW()
		FROM (
			SELECT pr.uid, COALESCE(SUM(cardinality(v.liked_by)), 0)::INT AS total
			FROM profiles pr
			LEFT JOIN videos v ON v.uploader_uid = pr.uid
			GROUP BY pr.uid
		) s
		WHERE p.uid = s.uid AND p.likes_received <> s.total
		RETURNING p.uid
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка пересчёта likes_received: %w", err)
	}
	uids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("ошибка пересчёта likes_received: %w", err)
	}
	return uids, nil
}

func (r *Repository) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка обновления профиля: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrProfileNotFound
	}
	return nil
}
