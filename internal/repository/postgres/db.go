package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
	"go.uber.org/zap"

	"github.com/xela07ax/reflections-auth/internal/infra"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                      UUID PRIMARY KEY,
	first_name              TEXT NOT NULL DEFAULT '',
	last_name               TEXT NOT NULL DEFAULT '',
	email                   TEXT NOT NULL UNIQUE,
	username                TEXT NOT NULL UNIQUE,
	password_hash           TEXT NOT NULL,
	avatar_url              TEXT NOT NULL DEFAULT '',
	role                    TEXT NOT NULL DEFAULT 'AUTHOR',
	account_non_expired     BOOLEAN NOT NULL DEFAULT TRUE,
	account_non_locked      BOOLEAN NOT NULL DEFAULT TRUE,
	credentials_non_expired BOOLEAN NOT NULL DEFAULT TRUE,
	enabled                 BOOLEAN NOT NULL DEFAULT TRUE,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS auth_audit_logs (
	id          UUID PRIMARY KEY,
	request_id  TEXT NOT NULL DEFAULT '',
	action      TEXT NOT NULL,
	email       TEXT NOT NULL DEFAULT '',
	user_id     TEXT NOT NULL DEFAULT '',
	actor_id    TEXT NOT NULL DEFAULT '',
	outcome     TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	remote_addr TEXT NOT NULL DEFAULT '',
	timestamp   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_auth_audit_logs_email ON auth_audit_logs (email, timestamp DESC);
`

// Open создает пул соединений и ждет доступности базы (с повторами при старте).
func Open(ctx context.Context, cfg infra.DatabaseConfig, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(5),
		retry.DelayType(retry.BackOffDelay),
	)
	err = r.Do(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			logger.Warn("database unreachable, retrying", zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}

// Migrate создает таблицы, если их нет.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}
