package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const ddlSQLite = `
CREATE TABLE IF NOT EXISTS translation_cache (
    text             TEXT     NOT NULL,
    source_lang      TEXT     NOT NULL,
    target_lang      TEXT     NOT NULL,
    translated       TEXT     NOT NULL,
    detected_source  TEXT     NOT NULL DEFAULT '',
    confidence       REAL     NOT NULL DEFAULT 0,
    created_at       TEXT     NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
    PRIMARY KEY (text, source_lang, target_lang)
);
`

// SQLite is a [Store] backed by a local SQLite database file.
type SQLite struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens or creates the database at path, creating parent
// directories as needed.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite store: create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite store: apply pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, ddlSQLite); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite store: migrate: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLite) Path() string { return s.path }

// Get implements [Store].
func (s *SQLite) Get(ctx context.Context, k Key) (Entry, bool, error) {
	var e Entry
	err := s.db.QueryRowContext(ctx,
		`SELECT translated, detected_source, confidence FROM translation_cache
         WHERE text = ? AND source_lang = ? AND target_lang = ?`,
		k.Text, k.Source, k.Target,
	).Scan(&e.Text, &e.DetectedSource, &e.Confidence)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("sqlite store: get: %w", err)
	}
	return e, true, nil
}

// Put implements [Store].
func (s *SQLite) Put(ctx context.Context, k Key, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO translation_cache (text, source_lang, target_lang, translated, detected_source, confidence)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT (text, source_lang, target_lang) DO UPDATE SET
             translated = excluded.translated,
             detected_source = excluded.detected_source,
             confidence = excluded.confidence`,
		k.Text, k.Source, k.Target, e.Text, e.DetectedSource, e.Confidence,
	)
	if err != nil {
		return fmt.Errorf("sqlite store: put: %w", err)
	}
	return nil
}

// Len implements [Store].
func (s *SQLite) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM translation_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite store: count: %w", err)
	}
	return n, nil
}

// Clear implements [Store].
func (s *SQLite) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM translation_cache`); err != nil {
		return fmt.Errorf("sqlite store: clear: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
