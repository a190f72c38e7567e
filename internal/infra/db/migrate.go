package db

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    id           UUID PRIMARY KEY,
    email        TEXT NOT NULL UNIQUE,
    name         TEXT NOT NULL,
    topics       TEXT[] NOT NULL,
    sources      TEXT[] NOT NULL,
    frequency    VARCHAR(10) NOT NULL CHECK (frequency IN ('daily', 'weekly')),
    format       VARCHAR(10) NOT NULL CHECK (format IN ('short', 'detailed')),
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS articles (
    id           BIGSERIAL PRIMARY KEY,
    title        TEXT NOT NULL,
    url          TEXT NOT NULL UNIQUE,
    source       TEXT NOT NULL,
    published_at TIMESTAMPTZ NOT NULL,
    content      TEXT NOT NULL DEFAULT '',
    summary      TEXT NOT NULL DEFAULT '',
    topics       TEXT[] NOT NULL DEFAULT '{}',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS digests (
    id           BIGSERIAL PRIMARY KEY,
    user_id      UUID NOT NULL,
    mode         VARCHAR(32) NOT NULL,
    summary      TEXT NOT NULL,
    articles     JSONB NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS digest_jobs (
    id           BIGSERIAL PRIMARY KEY,
    user_id      UUID NOT NULL,
    mode         VARCHAR(32) NOT NULL,
    execute_at   TIMESTAMPTZ NOT NULL,
    status       VARCHAR(16) NOT NULL DEFAULT 'pending',
    attempts     INTEGER NOT NULL DEFAULT 0,
    last_error   TEXT NOT NULL DEFAULT '',
    digest_id    BIGINT NOT NULL DEFAULT 0,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	// ユーザー別の頻度バッチ取得用
	`CREATE INDEX IF NOT EXISTS idx_users_frequency ON users(frequency)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles(published_at DESC)`,
	// 重複実行ガード(user_id + mode + created_at)用
	`CREATE INDEX IF NOT EXISTS idx_digests_user_mode_created ON digests(user_id, mode, created_at DESC)`,
	// 期限到来ジョブのポーリング用
	`CREATE INDEX IF NOT EXISTS idx_digest_jobs_due ON digest_jobs(execute_at) WHERE status = 'pending'`,
}

// MigrateUp creates the users, articles, digests and digest_jobs tables.
func MigrateUp(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
