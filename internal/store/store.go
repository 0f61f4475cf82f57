// Package store persists books, chapters and audio chunks in Postgres.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps the shared connection pool.
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB connects to Postgres using the given DSN.
func NewDB(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &DB{Pool: pool}, nil
}

func (d *DB) Close() {
	if d != nil && d.Pool != nil {
		d.Pool.Close()
	}
}

// EnsureSchema creates the tables if they do not exist. Suitable for worker
// startup; production deployments may manage schema externally.
func (d *DB) EnsureSchema(ctx context.Context) error {
	_, err := d.Pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS books (
  id                 TEXT PRIMARY KEY,
  title              TEXT NOT NULL DEFAULT '',
  tts_provider       TEXT NOT NULL DEFAULT 'elevenlabs',
  narrator_voice_id  TEXT NOT NULL DEFAULT '',
  total_chapters     INT  NOT NULL DEFAULT 0,
  completed_chapters INT  NOT NULL DEFAULT 0,
  audio_complete     BOOL NOT NULL DEFAULT FALSE,
  voice_assignments  JSONB NOT NULL DEFAULT '{}',
  assignments_provider TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS chapters (
  id            TEXT PRIMARY KEY,
  book_id       TEXT NOT NULL REFERENCES books(id) ON DELETE CASCADE,
  chapter_index INT  NOT NULL,
  title         TEXT NOT NULL,
  text          TEXT NOT NULL,
  UNIQUE (book_id, chapter_index)
);

CREATE TABLE IF NOT EXISTS audio_chunks (
  id               TEXT PRIMARY KEY,
  chapter_id       TEXT NOT NULL REFERENCES chapters(id) ON DELETE CASCADE,
  idx              INT  NOT NULL,
  voice            TEXT NOT NULL,
  provider         TEXT NOT NULL,
  text             TEXT NOT NULL,
  emotion          TEXT NOT NULL DEFAULT 'neutral',
  status           TEXT NOT NULL DEFAULT 'pending',
  audio_url        TEXT NOT NULL DEFAULT '',
  duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
  error_message    TEXT NOT NULL DEFAULT '',
  UNIQUE (chapter_id, idx)
);`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
