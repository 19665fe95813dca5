package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"NewsDigest/internal/config"
)

// DriverPostgres is the production backend; DriverSQLite serves local runs
// and tests without external credentials.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Timestamps are stored as fixed-width UTC strings so the same schema and
// range queries work on both backends.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS youtube_videos (
		video_id               TEXT PRIMARY KEY,
		title                  TEXT NOT NULL,
		url                    TEXT NOT NULL,
		channel_id             TEXT NOT NULL,
		published_at           TEXT NOT NULL,
		description            TEXT NOT NULL DEFAULT '',
		transcript             TEXT,
		transcript_unavailable BOOLEAN NOT NULL DEFAULT FALSE,
		created_at             TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS news_articles (
		url          TEXT PRIMARY KEY,
		title        TEXT NOT NULL,
		source       TEXT NOT NULL,
		published_at TEXT NOT NULL,
		content      TEXT NOT NULL,
		created_at   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS digests (
		content_kind TEXT NOT NULL,
		content_id   TEXT NOT NULL,
		url          TEXT NOT NULL,
		title        TEXT NOT NULL,
		summary      TEXT NOT NULL,
		effective_at TEXT NOT NULL,
		created_at   TEXT NOT NULL,
		PRIMARY KEY (content_kind, content_id)
	)`,
}

// Open connects to the configured database backend.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	switch cfg.Driver {
	case DriverPostgres, "":
		db, err := sql.Open("postgres", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return db, nil
	case DriverSQLite:
		db, err := sql.Open("sqlite", cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// Migrate creates all tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}
