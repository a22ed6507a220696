// Package store provides the persistent second-level cache behind the
// translation client.
//
// Three implementations are available:
//
//   - [Postgres] backed by a pgx connection pool, for shared deployments
//   - [SQLite] backed by the pure-Go modernc driver, for single-host use
//   - [Memory] for tests and for running without persistence
//
// All implementations are safe for concurrent use.
package store

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

// Key identifies a translation: the exact input text and language pair.
type Key struct {
	Text   string
	Source string
	Target string
}

// Entry is a cached translation result.
type Entry struct {
	Text           string
	DetectedSource string
	Confidence     float64
}

// Store persists translation results across sessions.
type Store interface {
	// Get looks up k. A miss returns ok == false and a nil error.
	Get(ctx context.Context, k Key) (e Entry, ok bool, err error)

	// Put inserts or replaces the entry for k.
	Put(ctx context.Context, k Key, e Entry) error

	// Len returns the number of stored entries.
	Len(ctx context.Context) (int, error)

	// Clear removes every entry.
	Clear(ctx context.Context) error

	Close() error
}

// Memory is an in-process [Store].
type Memory struct {
	mu      sync.RWMutex
	entries map[Key]Entry
	closed  bool
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[Key]Entry)}
}

// Get implements [Store].
func (m *Memory) Get(_ context.Context, k Key) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Entry{}, false, ErrClosed
	}
	e, ok := m.entries[k]
	return e, ok, nil
}

// Put implements [Store].
func (m *Memory) Put(_ context.Context, k Key, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.entries[k] = e
	return nil
}

// Len implements [Store].
func (m *Memory) Len(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}
	return len(m.entries), nil
}

// Clear implements [Store].
func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	clear(m.entries)
	return nil
}

// Close implements [Store].
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
