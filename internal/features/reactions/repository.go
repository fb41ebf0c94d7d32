// Package reactions — repository.go меняет и читает множества реакций в таблице videos.
package reactions

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/whistle/internal/common"
)

// Repository работает с колонками liked_by/disliked_by.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий реакций.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// mutationSQL строит ОДИН UPDATE для мутации: добавление в целевое множество
// и удаление из противоположного происходят в одном операторе,
// промежуточного состояния «в обоих множествах» не бывает.
func mutationSQL(m Mutation) string {
	target := m.Kind.column()
	if !m.Add {
		return fmt.Sprintf(`
			UPDATE videos
			SET %[1]s = array_remove(%[1]s, $2), updated_at = NOW()
			WHERE id = $1
		`, target)
	}

	opposite := m.Kind.Opposite().column()
	return fmt.Sprintf(`
		UPDATE videos
		SET %[1]s = CASE WHEN $2 = ANY(%[1]s) THEN %[1]s ELSE array_append(%[1]s, $2) END,
		    %[2]s = array_remove(%[2]s, $2),
		    updated_at = NOW()
		WHERE id = $1
	`, target, opposite)
}

// Apply применяет мутацию к видео videoID от имени uid.
func (r *Repository) Apply(ctx context.Context, videoID, uid string, m Mutation) error {
	tag, err := r.db.Exec(ctx, mutationSQL(m), videoID, uid)
	if err != nil {
		return fmt.Errorf("ошибка изменения реакции: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrVideoNotFound
	}
	return nil
}

// Counts возвращает размеры множеств видео.
func (r *Repository) Counts(ctx context.Context, videoID string) (Counts, error) {
	var c Counts
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(cardinality(liked_by), 0), COALESCE(cardinality(disliked_by), 0)
		FROM videos WHERE id = $1
	`, videoID).Scan(&c.Likes, &c.Dislikes)
	if errors.Is(err, pgx.ErrNoRows) {
		return Counts{}, common.ErrVideoNotFound
	}
	if err != nil {
		return Counts{}, fmt.Errorf("ошибка чтения реакций: %w", err)
	}
	return c, nil
}

// TotalsForUploader суммирует размеры множеств по всем видео автора.
func (r *Repository) TotalsForUploader(ctx context.Context, uid string) (Counts, error) {
	var c Counts
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(cardinality(liked_by)), 0), COALESCE(SUM(cardinality(disliked_by)), 0)
		FROM videos WHERE uploader_uid = $1
	`, uid).Scan(&c.Likes, &c.Dislikes)
	if err != nil {
		return Counts{}, fmt.Errorf("ошибка подсчёта реакций автора: %w", err)
	}
	return c, nil
}
