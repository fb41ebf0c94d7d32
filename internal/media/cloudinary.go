// Package media — cloudinary.go загружает файлы в Cloudinary.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/whistle/internal/config"
)

// Cloudinary — загрузчик поверх cloudinary-go.
type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinary создаёт клиент по CLOUDINARY_URL
// (cloudinary://<api_key>:<api_secret>@<cloud_name>).
func NewCloudinary(cfg *config.Config) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromURL(cfg.CloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации Cloudinary: %w", err)
	}
	return &Cloudinary{cld: cld, folder: cfg.CloudinaryFolder}, nil
}

// Upload загружает файл с пресетом opts.Preset.
func (c *Cloudinary) Upload(ctx context.Context, r io.Reader, opts UploadOptions) (*UploadResult, error) {
	folder := opts.Folder
	if folder == "" {
		folder = c.folder
	}

	res, err := c.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		ResourceType: opts.ResourceType,
		UploadPreset: opts.Preset,
		Folder:       folder,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки в Cloudinary: %w", err)
	}
	// Ошибки API приходят в теле ответа, а не в err
	if res.Error.Message != "" {
		return nil, fmt.Errorf("Cloudinary отклонил загрузку: %s", res.Error.Message)
	}
	if res.PublicID == "" || res.SecureURL == "" {
		return nil, errors.New("Cloudinary вернул ответ без public_id или secure_url")
	}

	log.WithFields(log.Fields{
		"public_id": res.PublicID,
		"bytes":     res.Bytes,
		"preset":    opts.Preset,
	}).Info("Файл загружен в Cloudinary")

	return &UploadResult{
		PublicID:     res.PublicID,
		SecureURL:    res.SecureURL,
		ResourceType: res.ResourceType,
		Bytes:        int64(res.Bytes),
		Format:       res.Format,
	}, nil
}

// Delete удаляет ресурс по public id.
func (c *Cloudinary) Delete(ctx context.Context, publicID, resourceType string) error {
	res, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления из Cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("Cloudinary отклонил удаление: %s", res.Error.Message)
	}
	return nil
}
