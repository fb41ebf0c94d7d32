// Package config загружает конфигурацию сервиса из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры,
// godotenv — чтобы локально можно было держать всё в .env.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

// Бэкенды загрузки медиа
const (
	MediaBackendCloudinary = "cloudinary"
	MediaBackendS3         = "s3"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- HTTP ---
	HTTPAddr            string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	HTTPWriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"0s"` // 0 — SSE-стримы живут сколько нужно
	HTTPShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"5s"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"whistle"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"whistle"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"UTC"`

	// --- Auth ---
	JWTSecret             string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL                time.Duration `envconfig:"JWT_TTL" default:"24h"`
	AuthMaxFailedAttempts int           `envconfig:"AUTH_MAX_FAILED_ATTEMPTS" default:"3"`
	AuthLockout           time.Duration `envconfig:"AUTH_LOCKOUT" default:"1h"`

	// --- Media ---
	MediaBackend          string `envconfig:"MEDIA_BACKEND" default:"cloudinary"`
	CloudinaryURL         string `envconfig:"CLOUDINARY_URL"`
	CloudinaryVideoPreset string `envconfig:"CLOUDINARY_VIDEO_PRESET" default:"whistle_uploads"`
	CloudinaryImagePreset string `envconfig:"CLOUDINARY_IMAGE_PRESET" default:"profile_pic_upload"`
	CloudinaryFolder      string `envconfig:"CLOUDINARY_FOLDER" default:"whistle"`

	S3Bucket        string `envconfig:"S3_BUCKET"`
	S3Region        string `envconfig:"S3_REGION" default:"auto"`
	S3Endpoint      string `envconfig:"S3_ENDPOINT"`
	S3AccessKey     string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey     string `envconfig:"S3_SECRET_KEY"`
	S3PublicBaseURL string `envconfig:"S3_PUBLIC_BASE_URL"`

	// --- Feed ---
	FeedPageSize int `envconfig:"FEED_PAGE_SIZE" default:"5"`

	// --- Aura ---
	AuraAwardThreshold int `envconfig:"AURA_AWARD_THRESHOLD" default:"333"`

	// --- Playback ---
	// Сколько живёт «показ» видео без событий от плеера
	PlaybackSessionTTL time.Duration `envconfig:"PLAYBACK_SESSION_TTL" default:"30m"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"60"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Telegram ---
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Feature Flags ---
	FeatureBotEnabled  bool `envconfig:"FEATURE_BOT_ENABLED" default:"false"`
	FeatureAuraEnabled bool `envconfig:"FEATURE_AURA_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	// Логин и пароль экранируются: в пароле бывают @ / : #
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.DBSSLMode}}.Encode(),
	}
	return u.String()
}

// Location возвращает часовой пояс приложения. Если зона не загрузилась — UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.AppTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) Validate() error {
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET должен быть не короче 16 символов")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL должен быть > 0")
	}
	if c.AuthMaxFailedAttempts <= 0 {
		return fmt.Errorf("AUTH_MAX_FAILED_ATTEMPTS должен быть > 0")
	}
	if c.FeedPageSize <= 0 {
		return fmt.Errorf("FEED_PAGE_SIZE должен быть > 0")
	}
	if c.AuraAwardThreshold <= 0 {
		return fmt.Errorf("AURA_AWARD_THRESHOLD должен быть > 0")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("некорректные RATE_LIMIT_REQUESTS/RATE_LIMIT_WINDOW")
	}

	switch c.MediaBackend {
	case MediaBackendCloudinary:
		if c.CloudinaryURL == "" {
			return fmt.Errorf("CLOUDINARY_URL не задан при MEDIA_BACKEND=cloudinary")
		}
	case MediaBackendS3:
		if c.S3Bucket == "" || c.S3AccessKey == "" || c.S3SecretKey == "" {
			return fmt.Errorf("S3_BUCKET/S3_ACCESS_KEY/S3_SECRET_KEY обязательны при MEDIA_BACKEND=s3")
		}
	default:
		return fmt.Errorf("неизвестный MEDIA_BACKEND %q", c.MediaBackend)
	}

	if c.FeatureBotEnabled {
		if c.TelegramBotToken == "" {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN не задан при FEATURE_BOT_ENABLED=true")
		}
		if c.BotMaxInflight <= 0 {
			return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
		}
		if c.BotUpdateTimeoutSeconds <= 0 {
			return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
		}
	}
	return nil
}

// Load читает .env (если есть) и переменные окружения, заполняет структуру Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug(".env не найден, используем только переменные окружения")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	cfg.MediaBackend = strings.ToLower(strings.TrimSpace(cfg.MediaBackend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
