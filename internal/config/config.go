// Package config provides the configuration schema, loader, hot-reload
// watcher and provider registry for the lingosync service.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/lingosync/pkg/types"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog maps l to a [slog.Level]. Unknown levels map to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// StoreDriver selects the persistent translation cache backend.
type StoreDriver string

const (
	// StoreNone keeps translations in memory only.
	StoreNone     StoreDriver = ""
	StoreMemory   StoreDriver = "memory"
	StoreSQLite   StoreDriver = "sqlite"
	StorePostgres StoreDriver = "postgres"
)

// IsValid reports whether d is a recognised driver.
func (d StoreDriver) IsValid() bool {
	switch d {
	case StoreNone, StoreMemory, StoreSQLite, StorePostgres:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Settings    types.Settings    `yaml:"settings"`
	Processor   ProcessorConfig   `yaml:"processor"`
	Translation TranslationConfig `yaml:"translation"`
	Sources     SourcesConfig     `yaml:"sources"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`

	// AllowedOrigins lists the origins allowed to open the websocket bridge
	// and call the HTTP API, e.g. "chrome-extension://*". Empty allows only
	// same-origin requests.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MaxSessions caps concurrent bridge sessions. 0 means unlimited.
	MaxSessions int `yaml:"max_sessions"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares the provider chain for each pipeline stage. The
// first translate and tts entries are the primaries; later entries are
// fallbacks tried in order.
type ProvidersConfig struct {
	Translate []ProviderEntry `yaml:"translate"`
	LLM       ProviderEntry   `yaml:"llm"`
	TTS       []ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "google", "elevenlabs").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// Option returns Options[key] as a string, or def when unset.
func (e ProviderEntry) Option(key, def string) string {
	if v, ok := e.Options[key].(string); ok && v != "" {
		return v
	}
	return def
}

// ProcessorConfig tunes the realtime processor.
type ProcessorConfig struct {
	TickInterval     time.Duration `yaml:"tick_interval"`
	Debounce         time.Duration `yaml:"debounce"`
	TranslationDelay time.Duration `yaml:"translation_delay"`
}

// TranslationConfig tunes the translation client and its cache.
type TranslationConfig struct {
	// CacheSize bounds the in-memory cache. 0 means unbounded.
	CacheSize int `yaml:"cache_size"`

	// RequestDelay is the pause between batch requests.
	RequestDelay time.Duration `yaml:"request_delay"`

	Store   StoreConfig   `yaml:"store"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// StoreConfig selects the persistent cache.
type StoreConfig struct {
	Driver StoreDriver `yaml:"driver"`

	// Path is the SQLite database file.
	Path string `yaml:"path"`

	// DSN is the PostgreSQL connection string.
	DSN string `yaml:"dsn"`
}

// BreakerConfig configures the per-provider circuit breakers.
type BreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// SourcesConfig enables the subtitle source adapters. They are tried in the
// order file, http, youtube.
type SourcesConfig struct {
	// Dir is the directory searched by the file source.
	Dir string `yaml:"dir"`

	// URLTemplate is the HTTP source template with {video} and {lang}.
	URLTemplate string `yaml:"url_template"`

	// YouTube enables the public timed text source.
	YouTube bool `yaml:"youtube"`
}
