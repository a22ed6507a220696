package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlPostgres = `
CREATE TABLE IF NOT EXISTS translation_cache (
    text             TEXT              NOT NULL,
    source_lang      TEXT              NOT NULL,
    target_lang      TEXT              NOT NULL,
    translated       TEXT              NOT NULL,
    detected_source  TEXT              NOT NULL DEFAULT '',
    confidence       DOUBLE PRECISION  NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ       NOT NULL DEFAULT now(),
    PRIMARY KEY (text, source_lang, target_lang)
);

CREATE INDEX IF NOT EXISTS idx_translation_cache_target
    ON translation_cache (target_lang);
`

// Postgres is a [Store] backed by a PostgreSQL translation_cache table.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// NewPostgres connects to dsn, verifies the connection and runs
// [MigratePostgres].
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if err := MigratePostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

// MigratePostgres creates the translation_cache table if needed. It is
// idempotent.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlPostgres); err != nil {
		return fmt.Errorf("postgres store: migrate: %w", err)
	}
	return nil
}

// Get implements [Store].
func (s *Postgres) Get(ctx context.Context, k Key) (Entry, bool, error) {
	const q = `
		SELECT translated, detected_source, confidence
		FROM   translation_cache
		WHERE  text = $1 AND source_lang = $2 AND target_lang = $3`

	var e Entry
	err := s.pool.QueryRow(ctx, q, k.Text, k.Source, k.Target).Scan(&e.Text, &e.DetectedSource, &e.Confidence)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("postgres store: get: %w", err)
	}
	return e, true, nil
}

// Put implements [Store].
func (s *Postgres) Put(ctx context.Context, k Key, e Entry) error {
	const q = `
		INSERT INTO translation_cache
		    (text, source_lang, target_lang, translated, detected_source, confidence)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (text, source_lang, target_lang) DO UPDATE
		    SET translated      = EXCLUDED.translated,
		        detected_source = EXCLUDED.detected_source,
		        confidence      = EXCLUDED.confidence`

	if _, err := s.pool.Exec(ctx, q, k.Text, k.Source, k.Target, e.Text, e.DetectedSource, e.Confidence); err != nil {
		return fmt.Errorf("postgres store: put: %w", err)
	}
	return nil
}

// Len implements [Store].
func (s *Postgres) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM translation_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres store: count: %w", err)
	}
	return n, nil
}

// Clear implements [Store].
func (s *Postgres) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE translation_cache`); err != nil {
		return fmt.Errorf("postgres store: clear: %w", err)
	}
	return nil
}

// Ping checks connectivity. The health checker uses it for readiness.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
