// Package media — s3.go хранит файлы в S3-совместимом хранилище
// (Cloudflare R2, MinIO, DigitalOcean Spaces).
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	log "github.com/sirupsen/logrus"
	"lukechampine.com/blake3"

	"serotonyl.ru/whistle/internal/common"
	"serotonyl.ru/whistle/internal/config"
)

// objectAPI — часть s3.Client, которая нам нужна. В тестах подменяется.
type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 — загрузчик в бакет. Public id — blake3-хеш содержимого,
// поэтому повторная загрузка того же файла не плодит копии.
type S3 struct {
	client        objectAPI
	bucket        string
	folder        string
	publicBaseURL string
}

// NewS3 создаёт клиент с кастомным endpoint и path-style адресацией.
func NewS3(ctx context.Context, cfg *config.Config) (*S3, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфига AWS: %w", err)
	}

	endpoint := strings.TrimRight(cfg.S3Endpoint, "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	})

	baseURL := strings.TrimRight(cfg.S3PublicBaseURL, "/")
	if baseURL == "" {
		baseURL = endpoint + "/" + cfg.S3Bucket
	}

	log.WithFields(log.Fields{
		"endpoint": endpoint,
		"bucket":   cfg.S3Bucket,
	}).Info("S3-хранилище инициализировано")

	return &S3{
		client:        client,
		bucket:        cfg.S3Bucket,
		folder:        cfg.CloudinaryFolder,
		publicBaseURL: baseURL,
	}, nil
}

// ContentID возвращает public id файла: hex blake3-256 от содержимого.
func ContentID(data []byte) string {
	return fmt.Sprintf("%x", blake3.Sum256(data))
}

// Upload читает файл целиком (SDK нужен seekable body для подписи),
// кладёт его под ключом <folder>/<blake3>.<ext>.
func (s *S3) Upload(ctx context.Context, r io.Reader, opts UploadOptions) (*UploadResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла: %w", err)
	}
	if len(data) == 0 {
		return nil, common.ErrEmptyUpload
	}

	folder := opts.Folder
	if folder == "" {
		folder = s.folder
	}
	format := strings.TrimPrefix(strings.ToLower(path.Ext(opts.Filename)), ".")
	publicID := path.Join(folder, ContentID(data))
	key := publicID
	if format != "" {
		key += "." + format
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType(opts.ResourceType, format)),
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки в бакет %s: %w", s.bucket, err)
	}

	log.WithFields(log.Fields{
		"key":   key,
		"bytes": len(data),
	}).Info("Файл загружен в S3")

	return &UploadResult{
		PublicID:     publicID,
		SecureURL:    s.publicBaseURL + "/" + key,
		ResourceType: opts.ResourceType,
		Bytes:        int64(len(data)),
		Format:       format,
	}, nil
}

// Delete удаляет объект. Расширение не хранится в public id,
// поэтому удаляем по префиксу-ключу без расширения и с типовыми расширениями.
func (s *S3) Delete(ctx context.Context, publicID, resourceType string) error {
	keys := []string{publicID}
	switch resourceType {
	case ResourceVideo:
		keys = append(keys, publicID+".mp4", publicID+".mov", publicID+".webm")
	case ResourceImage:
		keys = append(keys, publicID+".jpg", publicID+".jpeg", publicID+".png", publicID+".webp")
	}

	for _, key := range keys {
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}); err != nil {
			return fmt.Errorf("ошибка удаления %s из бакета %s: %w", key, s.bucket, err)
		}
	}
	return nil
}

func contentType(resourceType, format string) string {
	switch format {
	case "mp4":
		return "video/mp4"
	case "mov":
		return "video/quicktime"
	case "webm":
		return "video/webm"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	}
	if resourceType == ResourceImage {
		return "image/*"
	}
	if resourceType == ResourceVideo {
		return "video/*"
	}
	return "application/octet-stream"
}
