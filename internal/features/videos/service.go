// Package videos — service.go содержит бизнес-логику видео:
// загрузку через CDN, регистрацию клиентской загрузки и удаление автором.
package videos

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/whistle/internal/common"
	"serotonyl.ru/whistle/internal/config"
	"serotonyl.ru/whistle/internal/media"
)

// maxCaptionLength — максимальная длина подписи в символах.
const maxCaptionLength = 300

// Store — хранилище видео. Реализуется *Repository.
type Store interface {
	Create(ctx context.Context, v *Video) error
	Get(ctx context.Context, id string) (*Video, error)
	ListAll(ctx context.Context) ([]*Video, error)
	ListByUploader(ctx context.Context, uid string) ([]*Video, error)
	Delete(ctx context.Context, id string) error
	IncrementLikes(ctx context.Context, id string, delta int) error
}

// Service управляет видео.
type Service struct {
	store    Store
	uploader media.Uploader
	cfg      *config.Config
	now      func() time.Time
}

// NewService создаёт сервис видео.
func NewService(store Store, uploader media.Uploader, cfg *config.Config) *Service {
	return &Service{store: store, uploader: uploader, cfg: cfg, now: time.Now}
}

// Upload загружает файл в CDN с видео-пресетом и сохраняет документ.
func (s *Service) Upload(ctx context.Context, uid, caption string, file io.Reader, filename string) (*Video, error) {
	caption, err := normalizeCaption(caption)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, common.ErrEmptyUpload
	}

	res, err := s.uploader.Upload(ctx, file, media.UploadOptions{
		ResourceType: media.ResourceVideo,
		Preset:       s.cfg.CloudinaryVideoPreset,
		Filename:     filename,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки видео: %w", err)
	}

	return s.save(ctx, uid, caption, res)
}

// Register сохраняет видео, которое клиент сам загрузил в CDN.
// payload — ответ CDN как есть, проверяется на границе.
func (s *Service) Register(ctx context.Context, uid, caption string, payload map[string]any) (*Video, error) {
	caption, err := normalizeCaption(caption)
	if err != nil {
		return nil, err
	}

	res, err := media.DecodeUploadResult(payload)
	if err != nil {
		return nil, err
	}

	return s.save(ctx, uid, caption, res)
}

func (s *Service) save(ctx context.Context, uid, caption string, res *media.UploadResult) (*Video, error) {
	v := &Video{
		ID:          VideoID(res.PublicID),
		PublicID:    res.PublicID,
		URL:         res.SecureURL,
		UploaderUID: uid,
		Title:       caption,
		Date:        common.FormatVideoDate(s.now(), s.cfg.Location()),
		LikedBy:     []string{},
		DislikedBy:  []string{},
	}

	if err := s.store.Create(ctx, v); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"video_id": v.ID,
		"uploader": uid,
	}).Info("Видео сохранено")

	return v, nil
}

// VideoID выводит id документа из public id CDN: последний сегмент пути.
func VideoID(publicID string) string {
	return path.Base(strings.Trim(publicID, "/"))
}

func normalizeCaption(caption string) (string, error) {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return "", common.ErrEmptyCaption
	}
	if utf8.RuneCountInString(caption) > maxCaptionLength {
		runes := []rune(caption)
		caption = string(runes[:maxCaptionLength])
	}
	return caption, nil
}

// Get возвращает видео.
func (s *Service) Get(ctx context.Context, id string) (*Video, error) {
	return s.store.Get(ctx, id)
}

// ListAll возвращает всю коллекцию (источник для ленты).
func (s *Service) ListAll(ctx context.Context) ([]*Video, error) {
	return s.store.ListAll(ctx)
}

// ListByUploader возвращает видео автора.
func (s *Service) ListByUploader(ctx context.Context, uid string) ([]*Video, error) {
	return s.store.ListByUploader(ctx, uid)
}

// Delete удаляет видео. Удалять может только автор.
// Файл в CDN удаляется после документа; ошибка CDN только логируется.
func (s *Service) Delete(ctx context.Context, uid, id string) error {
	v, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if v.UploaderUID != uid {
		return common.ErrNotOwner
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	if v.PublicID != "" {
		if err := s.uploader.Delete(ctx, v.PublicID, media.ResourceVideo); err != nil {
			log.WithError(err).WithField("public_id", v.PublicID).Warn("Не удалось удалить файл видео из CDN")
		}
	}

	log.WithFields(log.Fields{
		"video_id": id,
		"uploader": uid,
	}).Info("Видео удалено")
	return nil
}

// IncrementLikes меняет исторический счётчик likes на delta.
func (s *Service) IncrementLikes(ctx context.Context, id string, delta int) error {
	if delta == 0 {
		return common.ErrInvalidAmount
	}
	return s.store.IncrementLikes(ctx, id, delta)
}
