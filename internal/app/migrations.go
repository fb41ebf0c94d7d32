package app

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/whistle/internal/db/postgres"
)

// runMigrations применяет все миграции по порядку.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	return postgres.RunMigrations(ctx, pool, []postgres.Migration{
		{Version: 1, SQL: migration001Profiles},
		{Version: 2, SQL: migration002Videos},
		{Version: 3, SQL: migration003Auth},
		{Version: 4, SQL: migration004Aura},
		{Version: 5, SQL: migration005TelegramLinks},
	})
}

// SQL-миграции встроены в код для упрощения деплоя.

var migration001Profiles = `
CREATE TABLE IF NOT EXISTS profiles (
    uid TEXT PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    email VARCHAR(255) UNIQUE NOT NULL,
    profile_picture_url TEXT,
    total_aura INTEGER NOT NULL DEFAULT 0,
    likes_received INTEGER NOT NULL DEFAULT 0,
    awards_available INTEGER NOT NULL DEFAULT 0,
    awards_received INTEGER NOT NULL DEFAULT 0,
    uploads TEXT[] NOT NULL DEFAULT '{}',
    videos_watched INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Триггер шлёт id изменённого видео в канал video_changes:
// на нём держатся подписки на счётчики реакций.
var migration002Videos = `
CREATE TABLE IF NOT EXISTS videos (
    id TEXT PRIMARY KEY,
    url TEXT NOT NULL,
    public_id TEXT NOT NULL DEFAULT '',
    likes INTEGER NOT NULL DEFAULT 0,
    dislikes INTEGER NOT NULL DEFAULT 0,
    awards INTEGER NOT NULL DEFAULT 0,
    uploader_uid TEXT NOT NULL REFERENCES profiles(uid) ON DELETE CASCADE,
    title TEXT NOT NULL DEFAULT '',
    date VARCHAR(32) NOT NULL DEFAULT '',
    liked_by TEXT[] NOT NULL DEFAULT '{}',
    disliked_by TEXT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_videos_uploader ON videos(uploader_uid);

CREATE OR REPLACE FUNCTION videos_notify() RETURNS TRIGGER AS $$
BEGIN
    IF TG_OP = 'DELETE' THEN
        PERFORM pg_notify('video_changes', OLD.id);
        RETURN OLD;
    END IF;
    PERFORM pg_notify('video_changes', NEW.id);
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS videos_notify ON videos;
CREATE TRIGGER videos_notify
    AFTER INSERT OR UPDATE OR DELETE ON videos
    FOR EACH ROW EXECUTE FUNCTION videos_notify();
`

var migration003Auth = `
CREATE TABLE IF NOT EXISTS credentials (
    uid TEXT PRIMARY KEY REFERENCES profiles(uid) ON DELETE CASCADE,
    email VARCHAR(255) UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS auth_sessions (
    id UUID PRIMARY KEY,
    uid TEXT NOT NULL REFERENCES profiles(uid) ON DELETE CASCADE,
    expires_at TIMESTAMPTZ NOT NULL,
    revoked BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_auth_sessions_uid ON auth_sessions(uid);
CREATE TABLE IF NOT EXISTS auth_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    email VARCHAR(255) NOT NULL,
    success BOOLEAN NOT NULL DEFAULT FALSE,
    attempt_time TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_auth_login_attempts_email ON auth_login_attempts(email, attempt_time DESC);
`

var migration004Aura = `
CREATE TABLE IF NOT EXISTS aura_log (
    id BIGSERIAL PRIMARY KEY,
    uid TEXT NOT NULL REFERENCES profiles(uid) ON DELETE CASCADE,
    delta INTEGER NOT NULL,
    reason VARCHAR(32) NOT NULL,
    from_uid TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_aura_log_uid ON aura_log(uid, created_at DESC);
`

var migration005TelegramLinks = `
CREATE TABLE IF NOT EXISTS telegram_links (
    telegram_user_id BIGINT PRIMARY KEY,
    uid TEXT NOT NULL REFERENCES profiles(uid) ON DELETE CASCADE,
    linked_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
