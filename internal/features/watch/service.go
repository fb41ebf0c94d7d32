// Package watch — service.go связывает события плеера со счётчиком просмотров.
package watch

import (
	"context"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/whistle/internal/features/videos"
)

// Store — хранилище счётчика просмотров. Реализуется *Repository.
type Store interface {
	IncrementWatched(ctx context.Context, uid string) (int, error)
}

// VideoSource проверяет, что видео существует.
type VideoSource interface {
	Get(ctx context.Context, id string) (*videos.Video, error)
}

// ProfileRefresher обновляет профиль в кеше.
type ProfileRefresher interface {
	Refresh(ctx context.Context, uid string)
}

// Service управляет показами.
type Service struct {
	registry *Registry
	store    Store
	videos   VideoSource
	profiles ProfileRefresher
}

// NewService создаёт сервис просмотров.
func NewService(registry *Registry, store Store, videos VideoSource, profiles ProfileRefresher) *Service {
	return &Service{registry: registry, store: store, videos: videos, profiles: profiles}
}

// Start открывает показ видео. Несуществующее видео — ErrVideoNotFound.
func (s *Service) Start(ctx context.Context, uid, videoID string) (*Presentation, error) {
	if _, err := s.videos.Get(ctx, videoID); err != nil {
		return nil, err
	}

	p := s.registry.Start(uid, videoID)
	log.WithFields(log.Fields{
		"uid":          uid,
		"video":        videoID,
		"presentation": p.ID,
	}).Debug("Показ видео начат")
	return p, nil
}

// HandleEvent применяет событие плеера к показу. Если показ завершился —
// засчитывает просмотр. Ошибка записи логируется, клиенту не возвращается.
func (s *Service) HandleEvent(ctx context.Context, uid, presentationID string, ev Event) (*EventResult, error) {
	p, err := s.registry.Touch(uid, presentationID)
	if err != nil {
		return nil, err
	}

	counted := p.tracker.Handle(ev)
	if counted {
		if _, err := s.RecordWatch(ctx, uid); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"uid":          uid,
				"presentation": p.ID,
			}).Error("Не удалось засчитать просмотр")
		}
	}

	return &EventResult{
		PresentationID: p.ID,
		Finished:       p.tracker.Finished(),
		Counted:        counted,
	}, nil
}

// RecordWatch увеличивает videos_watched пользователя и обновляет кеш профиля.
func (s *Service) RecordWatch(ctx context.Context, uid string) (int, error) {
	watched, err := s.store.IncrementWatched(ctx, uid)
	if err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{"uid": uid, "watched": watched}).Debug("Просмотр засчитан")
	if s.profiles != nil {
		s.profiles.Refresh(ctx, uid)
	}
	return watched, nil
}

// Cleanup удаляет истёкшие показы (вызывается планировщиком).
func (s *Service) Cleanup() int {
	return s.registry.Cleanup()
}
