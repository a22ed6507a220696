package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/MrWong99/lingosync/pkg/clock"
)

// DefaultWatchInterval is the default polling interval.
const DefaultWatchInterval = 5 * time.Second

// fingerprint identifies one revision of the config file.
type fingerprint struct {
	mtime time.Time
	size  int64
	sum   [sha256.Size]byte
}

// Watcher polls a config file and hands every new valid revision to a
// callback. Revisions that fail to parse or validate are reported once and
// skipped; edits that change nothing [Diff] can see (comments, ordering)
// replace the current config without a callback.
type Watcher struct {
	path     string
	interval time.Duration
	clk      clock.Clock
	getenv   func(string) string
	onChange func(old, new *Config)

	mu      sync.Mutex
	current *Config
	seen    fingerprint

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is [DefaultWatchInterval].
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatchClock sets the clock driving the polling ticker.
func WithWatchClock(c clock.Clock) WatcherOption {
	return func(w *Watcher) { w.clk = c }
}

// WithEnv sets the lookup used for environment overrides. Default: os.Getenv.
func WithEnv(getenv func(string) string) WatcherOption {
	return func(w *Watcher) { w.getenv = getenv }
}

// NewWatcher loads path and starts polling it. The initial load must succeed.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultWatchInterval,
		clk:      clock.Real(),
		getenv:   os.Getenv,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	fp, data, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	cfg, err := w.parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current, w.seen = cfg, fp

	go w.poll(w.clk.NewTicker(w.interval))
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends polling. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Watcher) poll(t clock.Ticker) {
	defer t.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-t.C():
			w.check()
		}
	}
}

func (w *Watcher) check() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	seen := w.seen
	w.mu.Unlock()
	if info.ModTime().Equal(seen.mtime) && info.Size() == seen.size {
		return
	}

	fp, data, err := w.read()
	if err != nil {
		slog.Warn("config watcher: cannot read file", "path", w.path, "err", err)
		return
	}
	if fp.sum == seen.sum {
		w.remember(fp)
		return
	}

	cfg, err := w.parse(data)
	if err != nil {
		// Remember the broken revision so it is reported once.
		w.remember(fp)
		slog.Warn("config watcher: ignoring invalid config", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	old := w.current
	w.current, w.seen = cfg, fp
	w.mu.Unlock()

	if Diff(old, cfg).Empty() {
		slog.Debug("config watcher: file changed without effect", "path", w.path)
		return
	}
	slog.Info("config watcher: configuration reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

func (w *Watcher) remember(fp fingerprint) {
	w.mu.Lock()
	w.seen = fp
	w.mu.Unlock()
}

func (w *Watcher) read() (fingerprint, []byte, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return fingerprint{}, nil, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return fingerprint{}, nil, err
	}
	return fingerprint{mtime: info.ModTime(), size: info.Size(), sum: sha256.Sum256(data)}, data, nil
}

func (w *Watcher) parse(data []byte) (*Config, error) {
	cfg, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	ApplyEnv(cfg, w.getenv)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
