// Package bridge connects browser extension clients to the subtitle
// pipeline over a websocket.
//
// Each connection becomes a [Session] with its own player, processor and
// speech controller. Text frames carry JSON [Message] envelopes; requests
// with an ID are answered exactly once with "<TYPE>_RESULT". Spoken
// translations are streamed back as binary PCM frames framed by
// AUDIO_START and AUDIO_END (or AUDIO_STOP when cut short).
package bridge

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/lingosync/pkg/types"
)

// maxMessageSize bounds inbound frames. Subtitle files are sent inline.
const maxMessageSize = 4 << 20

// Tracker keeps account of live sessions. Add may refuse a session, for
// example when a capacity limit is reached.
type Tracker interface {
	Add(s *Session) error
	Remove(id string)
}

// ServerOption configures a [Server].
type ServerOption func(*Server)

// WithOrigins sets the host patterns accepted in the Origin header, in the
// syntax of [websocket.AcceptOptions.OriginPatterns]. Without it only
// same-origin requests are accepted.
func WithOrigins(patterns ...string) ServerOption {
	return func(s *Server) { s.origins = patterns }
}

// WithTracker registers every session with t for its lifetime.
func WithTracker(t Tracker) ServerOption {
	return func(s *Server) { s.tracker = t }
}

// Server accepts websocket connections and runs a [Session] for each.
type Server struct {
	origins []string
	tracker Tracker

	mu   sync.RWMutex
	deps Deps
}

// NewServer returns a server that builds sessions from deps.
func NewServer(deps Deps, opts ...ServerOption) *Server {
	s := &Server{deps: deps}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetDefaults replaces the settings and timings used for new sessions.
// Running sessions are not affected.
func (s *Server) SetDefaults(settings types.Settings, timings Timings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deps.Settings = settings
	s.deps.Timings = timings
}

// Register mounts the websocket endpoint on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/ws", s.ServeWS)
}

// ServeWS upgrades the request and serves the session until the client
// goes away.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.origins,
	})
	if err != nil {
		slog.Warn("bridge: websocket accept failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	s.mu.RLock()
	deps := s.deps
	s.mu.RUnlock()

	sess := newSession(conn, deps)
	if s.tracker != nil {
		if err := s.tracker.Add(sess); err != nil {
			slog.Warn("bridge: session refused", "session", sess.ID(), "err", err)
			conn.Close(websocket.StatusTryAgainLater, err.Error())
			sess.Close()
			return
		}
		defer s.tracker.Remove(sess.ID())
	}

	slog.Info("bridge: session started", "session", sess.ID(), "remote", r.RemoteAddr)
	if err := sess.Run(r.Context()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Warn("bridge: session ended", "session", sess.ID(), "err", err)
		return
	}
	slog.Info("bridge: session ended", "session", sess.ID())
}
