// Package videos — repository.go работает с таблицей videos.
package videos

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/whistle/internal/common"
)

const videoColumns = `id, url, likes, dislikes, awards, uploader_uid, title, date,
	liked_by, disliked_by, created_at, public_id`

// Repository работает с таблицей videos.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий видео.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanVideo(row pgx.Row) (*Video, error) {
	var v Video
	err := row.Scan(
		&v.ID, &v.URL, &v.Likes, &v.Dislikes, &v.Awards, &v.UploaderUID,
		&v.Title, &v.Date, &v.LikedBy, &v.DislikedBy, &v.CreatedAt, &v.PublicID,
	)
	if err != nil {
		return nil, err
	}
	if v.LikedBy == nil {
		v.LikedBy = []string{}
	}
	if v.DislikedBy == nil {
		v.DislikedBy = []string{}
	}
	return &v, nil
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]*Video, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения видео: %w", err)
	}
	defer rows.Close()

	var result []*Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования видео: %w", err)
		}
		result = append(result, v)
	}
	return result, rows.Err()
}

// Create сохраняет видео и добавляет его id в uploads профиля автора.
// Занятый id — common.ErrVideoExists.
func (r *Repository) Create(ctx context.Context, v *Video) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Документ с таким id уже есть (чей угодно) — не трогаем его
	err = tx.QueryRow(ctx, `
		INSERT INTO videos (id, url, likes, dislikes, awards, uploader_uid, title, date, liked_by, disliked_by, public_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '{}', '{}', $9)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at
	`, v.ID, v.URL, v.Likes, v.Dislikes, v.Awards, v.UploaderUID, v.Title, v.Date, v.PublicID).Scan(&v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.ErrVideoExists
	}
	if err != nil {
		return fmt.Errorf("ошибка сохранения видео: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE profiles
		SET uploads = CASE WHEN $2 = ANY(uploads) THEN uploads ELSE array_append(uploads, $2) END,
		    updated_at = NOW()
		WHERE uid = $1
	`, v.UploaderUID, v.ID)
	if err != nil {
		return fmt.Errorf("ошибка обновления uploads: %w", err)
	}

	return tx.Commit(ctx)
}

// Get возвращает видео по id.
func (r *Repository) Get(ctx context.Context, id string) (*Video, error) {
	v, err := scanVideo(r.db.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrVideoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения видео: %w", err)
	}
	return v, nil
}

// ListAll возвращает ВСЮ коллекцию видео. Лента сэмплирует из неё страницу.
func (r *Repository) ListAll(ctx context.Context) ([]*Video, error) {
	return r.list(ctx, `SELECT `+videoColumns+` FROM videos`)
}

// ListByUploader возвращает видео автора, новые сверху.
func (r *Repository) ListByUploader(ctx context.Context, uid string) ([]*Video, error) {
	return r.list(ctx, `SELECT `+videoColumns+` FROM videos WHERE uploader_uid = $1 ORDER BY created_at DESC`, uid)
}

// Delete удаляет видео и убирает его id из uploads автора.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var uploader string
	err = tx.QueryRow(ctx, `DELETE FROM videos WHERE id = $1 RETURNING uploader_uid`, id).Scan(&uploader)
	if errors.Is(err, pgx.ErrNoRows) {
		return common.ErrVideoNotFound
	}
	if err != nil {
		return fmt.Errorf("ошибка удаления видео: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE profiles SET uploads = array_remove(uploads, $2), updated_at = NOW() WHERE uid = $1
	`, uploader, id); err != nil {
		return fmt.Errorf("ошибка обновления uploads: %w", err)
	}

	return tx.Commit(ctx)
}

// IncrementLikes атомарно меняет исторический счётчик likes.
func (r *Repository) IncrementLikes(ctx context.Context, id string, delta int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE videos SET likes = likes + $2, updated_at = NOW() WHERE id = $1
	`, id, delta)
	if err != nil {
		return fmt.Errorf("ошибка изменения счётчика лайков: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrVideoNotFound
	}
	return nil
}
