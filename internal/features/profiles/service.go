// Package profiles — service.go: чтение профиля, смена имени и аватарки.
package profiles

import (
	"context"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/whistle/internal/common"
	"serotonyl.ru/whistle/internal/config"
	"serotonyl.ru/whistle/internal/media"
)

// Store — хранилище профилей. Реализуется *Repository.
type Store interface {
	Fetcher
	UpdateName(ctx context.Context, uid, name string) error
	UpdatePicture(ctx context.Context, uid, url string) error
}

// Service управляет профилями.
type Service struct {
	store    Store
	cache    *Cache
	uploader media.Uploader
	cfg      *config.Config
}

// NewService создаёт сервис профилей.
func NewService(store Store, cache *Cache, uploader media.Uploader, cfg *config.Config) *Service {
	return &Service{store: store, cache: cache, uploader: uploader, cfg: cfg}
}

// Get возвращает профиль (через кеш).
func (s *Service) Get(ctx context.Context, uid string) (*Profile, error) {
	return s.cache.Load(ctx, uid)
}

// UpdateName меняет имя пользователя.
func (s *Service) UpdateName(ctx context.Context, uid, name string) (*Profile, error) {
	name, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateName(ctx, uid, name); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"uid": uid, "name": name}).Info("Имя профиля изменено")
	return s.cache.Refresh(ctx, uid)
}

// UpdatePicture загружает аватарку с пресетом для изображений и сохраняет её URL.
func (s *Service) UpdatePicture(ctx context.Context, uid string, file io.Reader, filename string) (*Profile, error) {
	if file == nil {
		return nil, common.ErrEmptyUpload
	}

	res, err := s.uploader.Upload(ctx, file, media.UploadOptions{
		ResourceType: media.ResourceImage,
		Preset:       s.cfg.CloudinaryImagePreset,
		Filename:     filename,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки аватарки: %w", err)
	}

	if err := s.store.UpdatePicture(ctx, uid, res.SecureURL); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"uid": uid, "public_id": res.PublicID}).Info("Аватарка обновлена")
	return s.cache.Refresh(ctx, uid)
}

// Refresh перечитывает профиль в кеш после изменений в других модулях
// (аура, просмотры, загрузки).
func (s *Service) Refresh(ctx context.Context, uid string) {
	if _, err := s.cache.Refresh(ctx, uid); err != nil {
		log.WithError(err).WithField("uid", uid).Warn("Не удалось обновить профиль в кеше")
	}
}
