package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/lingosync/internal/processor"
	"github.com/MrWong99/lingosync/internal/resilience"
	"github.com/MrWong99/lingosync/internal/translation"
	"github.com/MrWong99/lingosync/pkg/types"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"translate": {"google", "gtx", "deepl", "llm"},
	"llm":       {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"tts":       {"elevenlabs", "coqui"},
}

// Environment variables that override secrets from the file.
const (
	EnvGoogleAPIKey     = "LINGOSYNC_GOOGLE_API_KEY"
	EnvDeepLAPIKey      = "LINGOSYNC_DEEPL_API_KEY"
	EnvOpenAIAPIKey     = "LINGOSYNC_OPENAI_API_KEY"
	EnvElevenLabsAPIKey = "LINGOSYNC_ELEVENLABS_API_KEY"
	EnvPostgresDSN      = "LINGOSYNC_POSTGRES_DSN"
)

// Default returns a config with every default applied and the keyless
// translation provider selected.
func Default() *Config {
	cfg := &Config{Settings: types.DefaultSettings()}
	ApplyDefaults(cfg)
	return cfg
}

// Load reads the YAML configuration file at path, applies environment
// overrides and returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := decode(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	ApplyEnv(cfg, os.Getenv)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. Environment overrides are not applied.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg, err := decode(r)
	if err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{Settings: types.DefaultSettings()}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// ApplyDefaults fills zero values with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if len(cfg.Providers.Translate) == 0 {
		cfg.Providers.Translate = []ProviderEntry{{Name: "gtx"}}
	}
	setDuration(&cfg.Processor.TickInterval, processor.DefaultTickInterval)
	setDuration(&cfg.Processor.Debounce, processor.DefaultDebounce)
	setDuration(&cfg.Processor.TranslationDelay, processor.DefaultTranslationDelay)
	setDuration(&cfg.Translation.RequestDelay, translation.DefaultRequestDelay)
	if cfg.Translation.Breaker.MaxFailures == 0 {
		cfg.Translation.Breaker.MaxFailures = resilience.DefaultMaxFailures
	}
	setDuration(&cfg.Translation.Breaker.ResetTimeout, resilience.DefaultResetTimeout)
	if cfg.Translation.Store.Driver == StoreSQLite && cfg.Translation.Store.Path == "" {
		cfg.Translation.Store.Path = "lingosync-cache.db"
	}
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}

// ApplyEnv overrides secrets with values from getenv. Keys apply to every
// provider entry of the matching name.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	keys := map[string]string{
		"google":     getenv(EnvGoogleAPIKey),
		"deepl":      getenv(EnvDeepLAPIKey),
		"openai":     getenv(EnvOpenAIAPIKey),
		"elevenlabs": getenv(EnvElevenLabsAPIKey),
	}
	apply := func(e *ProviderEntry) {
		if v := keys[e.Name]; v != "" {
			e.APIKey = v
		}
	}
	for i := range cfg.Providers.Translate {
		apply(&cfg.Providers.Translate[i])
	}
	for i := range cfg.Providers.TTS {
		apply(&cfg.Providers.TTS[i])
	}
	apply(&cfg.Providers.LLM)
	if dsn := getenv(EnvPostgresDSN); dsn != "" {
		cfg.Translation.Store.DSN = dsn
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("server.max_sessions %d must not be negative", cfg.Server.MaxSessions))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	usesLLM := false
	for i, e := range cfg.Providers.Translate {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.translate[%d].name is required", i))
			continue
		}
		validateProviderName("translate", e.Name)
		if e.Name == "llm" {
			usesLLM = true
		}
	}
	if usesLLM && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.translate uses \"llm\" but providers.llm is not configured"))
	}
	validateProviderName("llm", cfg.Providers.LLM.Name)
	for i, e := range cfg.Providers.TTS {
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("providers.tts[%d].name is required", i))
			continue
		}
		validateProviderName("tts", e.Name)
	}
	if len(cfg.Providers.TTS) == 0 && cfg.Settings.EnableTTS {
		slog.Warn("settings.enable_tts is set but no providers.tts is configured; speech is only available with a local engine")
	}

	if err := cfg.Settings.Validate(); err != nil {
		errs = append(errs, err)
	}

	for name, d := range map[string]time.Duration{
		"processor.tick_interval":     cfg.Processor.TickInterval,
		"processor.debounce":          cfg.Processor.Debounce,
		"processor.translation_delay": cfg.Processor.TranslationDelay,
		"translation.request_delay":   cfg.Translation.RequestDelay,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s %s must not be negative", name, d))
		}
	}
	if cfg.Translation.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("translation.cache_size %d must not be negative", cfg.Translation.CacheSize))
	}

	st := cfg.Translation.Store
	switch {
	case !st.Driver.IsValid():
		errs = append(errs, fmt.Errorf("translation.store.driver %q is invalid; valid values: memory, sqlite, postgres", st.Driver))
	case st.Driver == StorePostgres && st.DSN == "":
		errs = append(errs, fmt.Errorf("translation.store.dsn is required for the postgres driver (or set %s)", EnvPostgresDSN))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
