// Package reactions — service.go содержит переключение реакций и разовое чтение счётчиков.
//
// Политика ошибок: запись реакции — «отправил и забыл», ошибка только логируется;
// чтение деградирует к нулям.
package reactions

import (
	"context"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/whistle/internal/features/videos"
)

// Store — хранилище множеств реакций. Реализуется *Repository.
type Store interface {
	Apply(ctx context.Context, videoID, uid string, m Mutation) error
	Counts(ctx context.Context, videoID string) (Counts, error)
	TotalsForUploader(ctx context.Context, uid string) (Counts, error)
}

// Service управляет реакциями.
type Service struct {
	store Store
}

// NewService создаёт сервис реакций.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Toggle переключает реакцию kind пользователя uid на видео.
// Решение (поставить или снять) принимается по снимку video.
// Результат не возвращается: ошибка записи логируется и отбрасывается.
func (s *Service) Toggle(ctx context.Context, kind Kind, video *videos.Video, uid string) {
	m := Plan(kind, video, uid)

	if err := s.store.Apply(ctx, video.ID, uid, m); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"video_id": video.ID,
			"uid":      uid,
			"kind":     kind,
			"add":      m.Add,
		}).Error("Не удалось изменить реакцию")
		return
	}

	log.WithFields(log.Fields{
		"video_id": video.ID,
		"uid":      uid,
		"kind":     kind,
		"add":      m.Add,
	}).Debug("Реакция изменена")
}

// Count возвращает размер множества kind. При любой ошибке — 0.
func (s *Service) Count(ctx context.Context, kind Kind, videoID string) int {
	return s.Counts(ctx, videoID).Of(kind)
}

// Counts возвращает оба счётчика. При любой ошибке — 0/0.
func (s *Service) Counts(ctx context.Context, videoID string) Counts {
	c, err := s.store.Counts(ctx, videoID)
	if err != nil {
		log.WithError(err).WithField("video_id", videoID).Warn("Не удалось прочитать реакции")
		return Counts{}
	}
	return c
}

// TotalsForUploader возвращает сумму лайков и дизлайков по всем видео автора.
// При ошибке — (0, 0).
func (s *Service) TotalsForUploader(ctx context.Context, uid string) (likes, dislikes int) {
	c, err := s.store.TotalsForUploader(ctx, uid)
	if err != nil {
		log.WithError(err).WithField("uid", uid).Warn("Не удалось посчитать реакции автора")
		return 0, 0
	}
	return c.Likes, c.Dislikes
}
