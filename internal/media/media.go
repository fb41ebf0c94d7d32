// Package media — граница с внешним CDN загрузки файлов.
// Сервисы видео и профилей работают только с интерфейсом Uploader,
// конкретный бэкенд (Cloudinary или S3-совместимое хранилище)
// выбирается в конфиге переменной MEDIA_BACKEND.
package media

import (
	"context"
	"fmt"
	"io"
	"strings"

	"serotonyl.ru/whistle/internal/common"
	"serotonyl.ru/whistle/internal/config"
)

// Типы ресурсов CDN.
const (
	ResourceVideo = "video"
	ResourceImage = "image"
)

// UploadOptions — параметры одной загрузки.
type UploadOptions struct {
	ResourceType string // video или image
	Preset       string // пресет Cloudinary (whistle_uploads, profile_pic_upload)
	Folder       string
	Filename     string // исходное имя файла, нужно для расширения
}

// UploadResult — итог загрузки: финальный URL и публичный идентификатор.
type UploadResult struct {
	PublicID     string `json:"public_id"`
	SecureURL    string `json:"secure_url"`
	ResourceType string `json:"resource_type"`
	Bytes        int64  `json:"bytes"`
	Format       string `json:"format"`
}

// Uploader загружает и удаляет файлы во внешнем хранилище.
type Uploader interface {
	Upload(ctx context.Context, r io.Reader, opts UploadOptions) (*UploadResult, error)
	Delete(ctx context.Context, publicID, resourceType string) error
}

// DecodeUploadResult разбирает ответ CDN, пришедший от клиента
// (клиентская unsigned-загрузка присылает произвольный JSON-объект).
// public_id и secure_url обязательны и должны быть строками,
// иначе возвращается common.ErrMalformedUpload.
func DecodeUploadResult(payload map[string]any) (*UploadResult, error) {
	if payload == nil {
		return nil, fmt.Errorf("%w: пустой ответ", common.ErrMalformedUpload)
	}

	publicID, err := requiredString(payload, "public_id")
	if err != nil {
		return nil, err
	}
	secureURL, err := requiredString(payload, "secure_url")
	if err != nil {
		return nil, err
	}

	res := &UploadResult{PublicID: publicID, SecureURL: secureURL}

	if v, ok := payload["resource_type"].(string); ok {
		res.ResourceType = v
	}
	if v, ok := payload["format"].(string); ok {
		res.Format = v
	}
	// encoding/json превращает числа в float64
	switch v := payload["bytes"].(type) {
	case float64:
		res.Bytes = int64(v)
	case int:
		res.Bytes = int64(v)
	case int64:
		res.Bytes = v
	}

	return res, nil
}

func requiredString(payload map[string]any, key string) (string, error) {
	raw, ok := payload[key]
	if !ok {
		return "", fmt.Errorf("%w: нет поля %s", common.ErrMalformedUpload, key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: поле %s должно быть строкой, получено %T", common.ErrMalformedUpload, key, raw)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: поле %s пустое", common.ErrMalformedUpload, key)
	}
	return s, nil
}

// New создаёт загрузчик по MEDIA_BACKEND.
func New(ctx context.Context, cfg *config.Config) (Uploader, error) {
	switch cfg.MediaBackend {
	case config.MediaBackendCloudinary:
		return NewCloudinary(cfg)
	case config.MediaBackendS3:
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("неизвестный MEDIA_BACKEND: %q", cfg.MediaBackend)
	}
}
