package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/lingosync/internal/bridge"
	"github.com/MrWong99/lingosync/internal/observe"
	"github.com/MrWong99/lingosync/pkg/clock"
	"github.com/MrWong99/lingosync/pkg/types"
)

// ErrTooManySessions is returned by [SessionManager.Add] when the session
// limit is reached.
var ErrTooManySessions = errors.New("app: too many sessions")

// SessionInfo holds metadata about a connected extension session.
type SessionInfo struct {
	// SessionID is the unique identifier for this session.
	SessionID string `json:"sessionId"`

	// StartedAt is when the client connected.
	StartedAt time.Time `json:"startedAt"`

	// Active reports whether the translator is switched on.
	Active bool `json:"active"`

	// Subtitles is the number of loaded cues.
	Subtitles int `json:"subtitles"`

	// TargetLanguage is the session's current target language.
	TargetLanguage string `json:"targetLanguage"`
}

// Session is the part of a bridge session the manager needs.
type Session interface {
	ID() string
	Info() SessionInfo
	UpdateSettings(patch types.SettingsPatch) error
	Close()
}

type tracked struct {
	sess    Session
	started time.Time
}

// SessionManager keeps track of the connected bridge sessions and enforces
// the configured limit. All exported methods are safe for concurrent use.
type SessionManager struct {
	max     int
	clk     clock.Clock
	metrics *observe.Metrics

	mu       sync.Mutex
	sessions map[string]tracked
}

// SessionManagerConfig holds all dependencies for a [SessionManager].
type SessionManagerConfig struct {
	// MaxSessions caps concurrent sessions. 0 means unlimited.
	MaxSessions int
	Clock       clock.Clock
	Metrics     *observe.Metrics
}

// NewSessionManager creates a SessionManager with the given dependencies.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &SessionManager{
		max:      cfg.MaxSessions,
		clk:      cfg.Clock,
		metrics:  cfg.Metrics,
		sessions: make(map[string]tracked),
	}
}

// Tracker adapts the manager to [bridge.Tracker].
func (sm *SessionManager) Tracker() bridge.Tracker {
	return bridgeTracker{sm}
}

type bridgeTracker struct{ sm *SessionManager }

func (t bridgeTracker) Add(s *bridge.Session) error { return t.sm.Add(bridgeSession{s}) }
func (t bridgeTracker) Remove(id string)            { t.sm.Remove(id) }

// bridgeSession exposes a [bridge.Session] as a [Session].
type bridgeSession struct{ *bridge.Session }

func (b bridgeSession) Info() SessionInfo {
	stats := b.Processor().Stats()
	return SessionInfo{
		SessionID:      b.ID(),
		Active:         stats.Active,
		Subtitles:      stats.Subtitles,
		TargetLanguage: b.Processor().Settings().TargetLanguage,
	}
}

// Add registers s. It fails with [ErrTooManySessions] when the limit is
// reached, and when a session with the same ID is already tracked.
func (sm *SessionManager) Add(s Session) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.sessions[s.ID()]; ok {
		return fmt.Errorf("app: session %s already registered", s.ID())
	}
	if sm.max > 0 && len(sm.sessions) >= sm.max {
		return fmt.Errorf("%w (limit %d)", ErrTooManySessions, sm.max)
	}
	sm.sessions[s.ID()] = tracked{sess: s, started: sm.clk.Now().UTC()}
	sm.metrics.ActiveSessions.Add(context.Background(), 1)
	slog.Info("session registered", "session", s.ID(), "active", len(sm.sessions))
	return nil
}

// Remove forgets the session with the given ID. Unknown IDs are ignored.
func (sm *SessionManager) Remove(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if _, ok := sm.sessions[id]; !ok {
		return
	}
	delete(sm.sessions, id)
	sm.metrics.ActiveSessions.Add(context.Background(), -1)
	slog.Info("session removed", "session", id, "active", len(sm.sessions))
}

// Len returns the number of tracked sessions.
func (sm *SessionManager) Len() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

// List returns metadata for every session, oldest first.
func (sm *SessionManager) List() []SessionInfo {
	sm.mu.Lock()
	all := make([]tracked, 0, len(sm.sessions))
	for _, t := range sm.sessions {
		all = append(all, t)
	}
	sm.mu.Unlock()

	out := make([]SessionInfo, 0, len(all))
	for _, t := range all {
		info := t.sess.Info()
		info.StartedAt = t.started
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b SessionInfo) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.SessionID, b.SessionID)
	})
	return out
}

// ApplySettings pushes patch to every session. Sessions that reject it keep
// their settings; the failures are returned joined.
func (sm *SessionManager) ApplySettings(patch types.SettingsPatch) error {
	var errs []error
	for _, s := range sm.snapshot() {
		if err := s.UpdateSettings(patch); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", s.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// CloseAll closes every session. The bridge removes them as their
// connections end.
func (sm *SessionManager) CloseAll() {
	for _, s := range sm.snapshot() {
		s.Close()
	}
}

func (sm *SessionManager) snapshot() []Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	out := make([]Session, 0, len(sm.sessions))
	for _, t := range sm.sessions {
		out = append(out, t.sess)
	}
	return out
}
