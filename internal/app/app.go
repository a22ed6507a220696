// Package app wires the lingosync subsystems into a running service.
//
// The App struct owns the full lifecycle: New creates and connects the
// translation client, subtitle sources, websocket bridge and HTTP router,
// Run serves until the context is cancelled, and Shutdown tears everything
// down in order. Reload applies a changed config without a restart where
// possible.
//
// For testing, inject doubles via functional options (WithStore,
// WithSources, WithClock, ...). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/lingosync/internal/bridge"
	"github.com/MrWong99/lingosync/internal/config"
	"github.com/MrWong99/lingosync/internal/health"
	"github.com/MrWong99/lingosync/internal/observe"
	"github.com/MrWong99/lingosync/internal/resilience"
	"github.com/MrWong99/lingosync/internal/source"
	"github.com/MrWong99/lingosync/internal/translation"
	"github.com/MrWong99/lingosync/internal/translation/store"
	"github.com/MrWong99/lingosync/pkg/clock"
	"github.com/MrWong99/lingosync/pkg/provider/translate"
	"github.com/MrWong99/lingosync/pkg/types"
)

const readHeaderTimeout = 10 * time.Second

// App owns all subsystem lifetimes and serves the lingosync HTTP surface.
type App struct {
	cfgMu sync.RWMutex
	cfg   *config.Config

	providers *Providers
	metrics   *observe.Metrics
	clk       clock.Clock
	level     *slog.LevelVar

	// Subsystems, initialised in New and torn down in Shutdown.
	store      store.Store
	translator *translation.Client
	sources    source.Source
	bridge     *bridge.Server
	sessions   *SessionManager
	health     *health.Handler
	router     chi.Router

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a persistent translation cache instead of opening the
// configured one.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithSources injects the subtitle source instead of building the chain
// from config.
func WithSources(s source.Source) Option {
	return func(a *App) { a.sources = s }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithClock sets the clock shared by all sessions.
func WithClock(c clock.Clock) Option {
	return func(a *App) { a.clk = c }
}

// WithLogLevel lets [App.Reload] adjust the log level of the process logger.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers come
// from [BuildProviders]; nil means none are configured. New performs all
// initialisation synchronously.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.clk == nil {
		a.clk = clock.Real()
	}

	// ── 1. Persistent cache ──────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Translation client ────────────────────────────────────────────
	a.initTranslator()

	// ── 3. Subtitle sources ──────────────────────────────────────────────
	a.initSources()

	// ── 4. Sessions + bridge ─────────────────────────────────────────────
	a.sessions = NewSessionManager(SessionManagerConfig{
		MaxSessions: cfg.Server.MaxSessions,
		Clock:       a.clk,
		Metrics:     a.metrics,
	})
	a.bridge = bridge.NewServer(bridge.Deps{
		Translator: a.translator,
		Sources:    a.sources,
		TTS:        providers.TTS,
		TTSName:    providers.TTSName,
		Settings:   cfg.Settings,
		Timings:    timings(cfg.Processor),
		Metrics:    a.metrics,
		Clock:      a.clk,
	},
		bridge.WithOrigins(originHosts(cfg.Server.AllowedOrigins)...),
		bridge.WithTracker(a.sessions.Tracker()),
	)

	// ── 5. Health checks ─────────────────────────────────────────────────
	a.health = health.New(a.checkers()...)

	// ── 6. Router ────────────────────────────────────────────────────────
	a.router = a.newRouter()

	slog.Info("app initialised",
		"translators", len(providers.Translate),
		"tts", providers.TTSName,
		"store", string(cfg.Translation.Store.Driver),
		"sources", sourceName(a.sources),
	)
	return a, nil
}

// NewTranslator opens the configured cache store and returns a translation
// client over providers, without the rest of the service. Closing the client
// closes the store. Only the store, clock and metrics options apply.
func NewTranslator(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*translation.Client, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{cfg: cfg, providers: providers, clk: clock.Real(), metrics: observe.DefaultMetrics()}
	for _, o := range opts {
		o(a)
	}
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	a.initTranslator()
	return a.translator, nil
}

func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	sc := a.cfg.Translation.Store
	switch sc.Driver {
	case config.StoreNone:
		return nil
	case config.StoreMemory:
		a.store = store.NewMemory()
	case config.StoreSQLite:
		s, err := store.OpenSQLite(ctx, sc.Path)
		if err != nil {
			return err
		}
		a.store = s
	case config.StorePostgres:
		s, err := store.NewPostgres(ctx, sc.DSN)
		if err != nil {
			return err
		}
		a.store = s
	default:
		return fmt.Errorf("unknown driver %q", sc.Driver)
	}
	slog.Info("translation store opened", "driver", string(sc.Driver))
	return nil
}

func (a *App) initTranslator() {
	tc := a.cfg.Translation
	opts := []translation.Option{
		translation.WithMaxEntries(tc.CacheSize),
		translation.WithRequestDelay(tc.RequestDelay),
		translation.WithBreaker(resilience.CircuitBreakerConfig{
			MaxFailures:  tc.Breaker.MaxFailures,
			ResetTimeout: tc.Breaker.ResetTimeout,
		}),
		translation.WithClock(a.clk),
		translation.WithMetrics(a.metrics),
	}
	if a.store != nil {
		opts = append(opts, translation.WithStore(a.store))
	}

	var primary translate.Provider
	if chain := a.providers.Translate; len(chain) > 0 {
		primary = chain[0]
		for _, p := range chain[1:] {
			opts = append(opts, translation.WithFallback(p))
		}
	} else {
		slog.Warn("no translation provider configured, text passes through untranslated")
	}
	a.translator = translation.New(primary, opts...)
	a.closers = append(a.closers, a.translator.Close)
}

func (a *App) initSources() {
	if a.sources != nil {
		return
	}
	sc := a.cfg.Sources
	var chain source.Chain
	if sc.Dir != "" {
		chain = append(chain, source.NewFile(sc.Dir))
	}
	if sc.URLTemplate != "" {
		chain = append(chain, source.NewHTTP(sc.URLTemplate))
	}
	if sc.YouTube {
		chain = append(chain, source.NewYouTube(""))
	}
	if len(chain) > 0 {
		a.sources = chain
	}
}

func (a *App) checkers() []health.Checker {
	checks := []health.Checker{health.Breakers("translate", a.translator.Status)}
	if f, ok := a.providers.TTS.(*resilience.TTSFallback); ok {
		checks = append(checks, health.Breakers("tts", f.Status))
	}
	if a.providers.LLM != nil {
		checks = append(checks, health.Breakers("llm", a.providers.LLM.Status))
	}
	if p, ok := a.store.(health.Pinger); ok {
		checks = append(checks, health.Ping("store", p))
	}
	return checks
}

func (a *App) newRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(observe.Middleware(a.metrics))
	r.Use(cors.Handler(corsOptions(a.cfg.Server.AllowedOrigins)))

	a.health.Register(r)
	r.Method(http.MethodGet, "/metrics", observe.Handler())
	a.bridge.Register(r)
	r.Route("/api", a.registerAPI)
	return r
}

// corsOptions allows the configured extension origins to call the API.
func corsOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "traceparent"},
		ExposedHeaders: []string{observe.TraceHeader},
		MaxAge:         300,
	}
}

// originHosts converts origins such as "chrome-extension://abc" into the
// host patterns the websocket handshake matches against.
func originHosts(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if !strings.Contains(o, "://") {
			out = append(out, o)
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			slog.Warn("ignoring malformed origin", "origin", o)
			continue
		}
		out = append(out, u.Host)
	}
	return out
}

func timings(p config.ProcessorConfig) bridge.Timings {
	return bridge.Timings{
		TickInterval:     p.TickInterval,
		Debounce:         p.Debounce,
		TranslationDelay: p.TranslationDelay,
	}
}

func sourceName(s source.Source) string {
	if s == nil {
		return "none"
	}
	return s.Name()
}

// Handler returns the HTTP handler serving the API, the bridge and the
// probes.
func (a *App) Handler() http.Handler { return a.router }

// Translator returns the shared translation client.
func (a *App) Translator() *translation.Client { return a.translator }

// Sessions returns the bridge session manager.
func (a *App) Sessions() *SessionManager { return a.sessions }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run listens on the configured address and serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen %s: %w", a.cfg.Server.ListenAddr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled. Open bridge sessions are closed
// before the HTTP server drains. Serve returns ctx.Err() after a clean stop.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ErrorLog:          slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
	}
	a.cfgMu.RLock()
	tls := a.cfg.Server.TLS
	a.cfgMu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server listening", "addr", ln.Addr().String(), "tls", tls != nil)
		var err error
		if tls != nil {
			err = srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.sessions.CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), readHeaderTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// ─── Reload ──────────────────────────────────────────────────────────────────

// Reload applies the hot-reloadable parts of next: log level, default
// settings and processor timings. New sessions pick up the changed defaults;
// running sessions receive the changed settings as a patch. Changes to other
// sections are logged and need a restart.
func (a *App) Reload(prev, next *config.Config) {
	d := config.Diff(prev, next)
	if d.Empty() {
		return
	}
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.Slog())
		slog.Info("log level changed", "level", string(d.NewLogLevel))
	}
	if d.SettingsChanged || d.ProcessorChanged {
		a.bridge.SetDefaults(next.Settings, timings(next.Processor))
	}
	if d.SettingsChanged {
		if err := a.sessions.ApplySettings(types.PatchFrom(next.Settings)); err != nil {
			slog.Warn("settings reload rejected by sessions", "err", err)
		} else {
			slog.Info("settings reloaded", "sessions", a.sessions.Len())
		}
	}
	if len(d.Restart) > 0 {
		slog.Warn("config changes need a restart", "sections", d.Restart)
	}
	a.cfgMu.Lock()
	a.cfg = next
	a.cfgMu.Unlock()
}

// settings returns the default settings of the current config.
func (a *App) settings() types.Settings {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg.Settings
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown closes open sessions and releases all subsystems. It respects the
// ctx deadline.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "sessions", a.sessions.Len(), "closers", len(a.closers))
		a.sessions.CloseAll()

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
