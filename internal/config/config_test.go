package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/lingosync/internal/config"
	"github.com/MrWong99/lingosync/pkg/provider/llm"
	llmmock "github.com/MrWong99/lingosync/pkg/provider/llm/mock"
	"github.com/MrWong99/lingosync/pkg/provider/translate"
	tmock "github.com/MrWong99/lingosync/pkg/provider/translate/mock"
	"github.com/MrWong99/lingosync/pkg/provider/tts"
	ttsmock "github.com/MrWong99/lingosync/pkg/provider/tts/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
  allowed_origins:
    - "chrome-extension://*"
  max_sessions: 8

providers:
  translate:
    - name: google
      api_key: g-test
    - name: llm
    - name: gtx
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  tts:
    - name: elevenlabs
      api_key: el-test
      options:
        voice_id: rachel
    - name: coqui
      base_url: http://localhost:5002

settings:
  target_language: ja
  tts_speed: 1.25

processor:
  tick_interval: 50ms
  translation_delay: 500ms

translation:
  cache_size: 500
  store:
    driver: sqlite
    path: /tmp/cache.db
  breaker:
    max_failures: 3
    reset_timeout: 10s

sources:
  dir: /srv/subtitles
  url_template: https://cdn.example.com/{video}/{lang}.vtt
  youtube: true
`

func mustLoad(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	return cfg
}

// ── loading ──────────────────────────────────────────────────────────────────

func TestLoadFromReader_Sample(t *testing.T) {
	t.Parallel()
	cfg := mustLoad(t, sampleYAML)

	if cfg.Server.ListenAddr != ":9090" || cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.MaxSessions != 8 || len(cfg.Server.AllowedOrigins) != 1 {
		t.Errorf("server limits = %+v", cfg.Server)
	}
	if got := len(cfg.Providers.Translate); got != 3 {
		t.Fatalf("translate providers = %d, want 3", got)
	}
	if cfg.Providers.Translate[0].APIKey != "g-test" {
		t.Errorf("google api key = %q", cfg.Providers.Translate[0].APIKey)
	}
	if got := cfg.Providers.TTS[0].Option("voice_id", ""); got != "rachel" {
		t.Errorf("voice_id option = %q", got)
	}

	// Unset settings keep their defaults.
	s := cfg.Settings
	if s.TargetLanguage != "ja" || s.TTSSpeed != 1.25 || s.SourceLanguage != "auto" || !s.EnableTTS {
		t.Errorf("settings = %+v", s)
	}

	if cfg.Processor.TickInterval != 50*time.Millisecond ||
		cfg.Processor.Debounce != 100*time.Millisecond ||
		cfg.Processor.TranslationDelay != 500*time.Millisecond {
		t.Errorf("processor = %+v", cfg.Processor)
	}
	if cfg.Translation.Store.Driver != config.StoreSQLite || cfg.Translation.Breaker.ResetTimeout != 10*time.Second {
		t.Errorf("translation = %+v", cfg.Translation)
	}
	if !cfg.Sources.YouTube || cfg.Sources.Dir != "/srv/subtitles" {
		t.Errorf("sources = %+v", cfg.Sources)
	}
}

func TestLoadFromReader_EmptyUsesDefaults(t *testing.T) {
	t.Parallel()
	cfg := mustLoad(t, "")
	def := config.Default()

	if cfg.Server.ListenAddr != ":8080" || cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("server = %+v", cfg.Server)
	}
	if len(cfg.Providers.Translate) != 1 || cfg.Providers.Translate[0].Name != "gtx" {
		t.Errorf("translate providers = %+v, want keyless gtx", cfg.Providers.Translate)
	}
	if cfg.Settings != def.Settings || cfg.Processor != def.Processor {
		t.Errorf("defaults differ from Default(): %+v vs %+v", cfg, def)
	}
	if cfg.Translation.Breaker.MaxFailures != 5 {
		t.Errorf("breaker max failures = %d", cfg.Translation.Breaker.MaxFailures)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("server:\n  listen_port: 80\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoad_AppliesEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.EnvGoogleAPIKey, "from-env")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.Providers.Translate[0].APIKey; got != "from-env" {
		t.Errorf("google api key = %q, want from-env", got)
	}
	if got := cfg.Providers.TTS[0].APIKey; got != "el-test" {
		t.Errorf("elevenlabs api key = %q, want file value", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	if _, err := config.Load("/nonexistent/lingosync.yaml"); err == nil {
		t.Fatal("expected error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()
	cfg := mustLoad(t, sampleYAML)
	env := map[string]string{
		config.EnvOpenAIAPIKey:     "sk-env",
		config.EnvElevenLabsAPIKey: "el-env",
		config.EnvPostgresDSN:      "postgres://env/db",
	}
	config.ApplyEnv(cfg, func(k string) string { return env[k] })

	if cfg.Providers.LLM.APIKey != "sk-env" {
		t.Errorf("llm key = %q", cfg.Providers.LLM.APIKey)
	}
	if cfg.Providers.TTS[0].APIKey != "el-env" {
		t.Errorf("tts key = %q", cfg.Providers.TTS[0].APIKey)
	}
	if cfg.Providers.TTS[1].APIKey != "" {
		t.Errorf("coqui key = %q, want untouched", cfg.Providers.TTS[1].APIKey)
	}
	if cfg.Translation.Store.DSN != "postgres://env/db" {
		t.Errorf("dsn = %q", cfg.Translation.Store.DSN)
	}
}

func TestProviderEntry_Option(t *testing.T) {
	t.Parallel()
	e := config.ProviderEntry{Options: map[string]any{"style": "casual", "n": 3}}
	if got := e.Option("style", "x"); got != "casual" {
		t.Errorf("style = %q", got)
	}
	if got := e.Option("n", "def"); got != "def" {
		t.Errorf("non-string option = %q, want default", got)
	}
	if got := e.Option("missing", "def"); got != "def" {
		t.Errorf("missing option = %q", got)
	}
}

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()
	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	if config.LogLevel("trace").IsValid() {
		t.Error("trace should be invalid")
	}
}

// ── registry ─────────────────────────────────────────────────────────────────

func TestRegistry_CreateAndNames(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	r.RegisterTranslate("mock", func(e config.ProviderEntry) (translate.Provider, error) {
		return &tmock.Provider{ProviderName: e.Name}, nil
	})
	r.RegisterTranslate("alpha", func(config.ProviderEntry) (translate.Provider, error) {
		return nil, errors.New("alpha is broken")
	})
	r.RegisterLLM("mock", func(config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{}, nil
	})
	r.RegisterTTS("mock", func(config.ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{}, nil
	})

	p, err := r.CreateTranslate(config.ProviderEntry{Name: "mock"})
	if err != nil {
		t.Fatalf("CreateTranslate: %v", err)
	}
	if p.Name() != "mock" {
		t.Errorf("provider name = %q", p.Name())
	}
	if _, err := p.Translate(context.Background(), translate.Request{Text: "hi", Target: "de"}); err != nil {
		t.Errorf("Translate: %v", err)
	}

	if _, err := r.CreateTranslate(config.ProviderEntry{Name: "alpha"}); err == nil || errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("factory error = %v, want factory's own error", err)
	}
	if _, err := r.CreateLLM(config.ProviderEntry{Name: "mock"}); err != nil {
		t.Errorf("CreateLLM: %v", err)
	}
	if _, err := r.CreateTTS(config.ProviderEntry{Name: "mock"}); err != nil {
		t.Errorf("CreateTTS: %v", err)
	}

	if got := strings.Join(r.Names("translate"), ","); got != "alpha,mock" {
		t.Errorf("Names(translate) = %s", got)
	}
	if r.Names("stt") != nil {
		t.Error("unknown kind should list nothing")
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	tests := []struct {
		name string
		fn   func() error
	}{
		{"translate", func() error { _, err := r.CreateTranslate(config.ProviderEntry{Name: "nope"}); return err }},
		{"llm", func() error { _, err := r.CreateLLM(config.ProviderEntry{Name: "nope"}); return err }},
		{"tts", func() error { _, err := r.CreateTTS(config.ProviderEntry{Name: "nope"}); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.fn()
			if !errors.Is(err, config.ErrProviderNotRegistered) {
				t.Errorf("err = %v, want ErrProviderNotRegistered", err)
			}
			if !strings.Contains(err.Error(), tt.name) {
				t.Errorf("err %q should name the kind", err)
			}
		})
	}
}
