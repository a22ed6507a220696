package app

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/lingosync/internal/config"
	"github.com/MrWong99/lingosync/internal/resilience"
	"github.com/MrWong99/lingosync/pkg/provider/llm"
	"github.com/MrWong99/lingosync/pkg/provider/llm/anyllm"
	oaillm "github.com/MrWong99/lingosync/pkg/provider/llm/openai"
	"github.com/MrWong99/lingosync/pkg/provider/translate"
	"github.com/MrWong99/lingosync/pkg/provider/translate/deepl"
	"github.com/MrWong99/lingosync/pkg/provider/translate/google"
	"github.com/MrWong99/lingosync/pkg/provider/translate/gtx"
	"github.com/MrWong99/lingosync/pkg/provider/translate/llmtranslate"
	"github.com/MrWong99/lingosync/pkg/provider/tts"
	"github.com/MrWong99/lingosync/pkg/provider/tts/coqui"
	"github.com/MrWong99/lingosync/pkg/provider/tts/elevenlabs"
)

// Providers holds the instantiated providers. Nil or empty fields mean the
// provider kind is not configured.
type Providers struct {
	// Translate is the translation chain in preference order.
	Translate []translate.Provider

	// LLM backs the "llm" translator. It runs behind a circuit breaker.
	LLM *resilience.LLMFallback

	// TTS renders speech. Several configured engines fail over in order.
	TTS     tts.Provider
	TTSName string
}

// RegisterBuiltins wires every built-in provider factory into reg.
func RegisterBuiltins(reg *config.Registry) {
	// ── Translation ───────────────────────────────────────────────────────────
	reg.RegisterTranslate("google", func(entry config.ProviderEntry) (translate.Provider, error) {
		var opts []google.Option
		if entry.BaseURL != "" {
			opts = append(opts, google.WithBaseURL(entry.BaseURL))
		}
		return google.New(entry.APIKey, opts...)
	})

	reg.RegisterTranslate("gtx", func(entry config.ProviderEntry) (translate.Provider, error) {
		var opts []gtx.Option
		if entry.BaseURL != "" {
			opts = append(opts, gtx.WithBaseURL(entry.BaseURL))
		}
		return gtx.New(opts...), nil
	})

	reg.RegisterTranslate("deepl", func(entry config.ProviderEntry) (translate.Provider, error) {
		var opts []deepl.Option
		if entry.BaseURL != "" {
			opts = append(opts, deepl.WithBaseURL(entry.BaseURL))
		}
		if f := entry.Option("formality", ""); f != "" {
			opts = append(opts, deepl.WithFormality(f))
		}
		return deepl.New(entry.APIKey, opts...)
	})

	// ── LLM ───────────────────────────────────────────────────────────────────
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		if org := entry.Option("organization", ""); org != "" {
			opts = append(opts, oaillm.WithOrganization(org))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	// The remaining backends go through any-llm-go and share the same
	// pattern: optional APIKey + optional BaseURL.
	for _, backend := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq",
		"ollama", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(backend, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(backend, entry.Model, opts...)
		})
	}

	// ── TTS ───────────────────────────────────────────────────────────────────
	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if f := entry.Option("output_format", ""); f != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(f))
		}
		if v := entry.Option("voice", ""); v != "" {
			opts = append(opts, elevenlabs.WithDefaultVoice(v))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := entry.Option("language", ""); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if rate, ok := optFloat(entry, "sample_rate"); ok && rate > 0 {
			opts = append(opts, coqui.WithSampleRate(int(rate)))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	for _, kind := range []string{"translate", "llm", "tts"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// BuildProviders instantiates every provider named in cfg using reg.
// Unregistered names are skipped with a warning; construction errors are
// fatal.
func BuildProviders(cfg *config.Config, reg *config.Registry) (*Providers, error) {
	ps := &Providers{}
	breaker := resilience.FallbackConfig{CircuitBreaker: resilience.CircuitBreakerConfig{
		MaxFailures:  cfg.Translation.Breaker.MaxFailures,
		ResetTimeout: cfg.Translation.Breaker.ResetTimeout,
	}}

	if entry := cfg.Providers.LLM; entry.Name != "" {
		p, err := reg.CreateLLM(entry)
		switch {
		case errors.Is(err, config.ErrProviderNotRegistered):
			slog.Warn("unknown provider, skipping", "kind", "llm", "name", entry.Name)
		case err != nil:
			return nil, fmt.Errorf("app: create llm provider %q: %w", entry.Name, err)
		default:
			ps.LLM = resilience.NewLLMFallback(p, entry.Name, breaker)
			slog.Info("provider created", "kind", "llm", "name", entry.Name, "model", entry.Model)
		}
	}

	var backend llm.Provider
	if ps.LLM != nil {
		backend = ps.LLM
	}
	for _, entry := range cfg.Providers.Translate {
		p, err := createTranslate(reg, entry, backend)
		switch {
		case errors.Is(err, config.ErrProviderNotRegistered):
			slog.Warn("unknown provider, skipping", "kind", "translate", "name", entry.Name)
			continue
		case err != nil:
			return nil, fmt.Errorf("app: create translate provider %q: %w", entry.Name, err)
		}
		ps.Translate = append(ps.Translate, p)
		slog.Info("provider created", "kind", "translate", "name", entry.Name)
	}

	var ttsChain *resilience.TTSFallback
	for _, entry := range cfg.Providers.TTS {
		p, err := reg.CreateTTS(entry)
		switch {
		case errors.Is(err, config.ErrProviderNotRegistered):
			slog.Warn("unknown provider, skipping", "kind", "tts", "name", entry.Name)
			continue
		case err != nil:
			return nil, fmt.Errorf("app: create tts provider %q: %w", entry.Name, err)
		}
		if ttsChain == nil {
			ttsChain = resilience.NewTTSFallback(p, entry.Name, breaker)
			ps.TTSName = entry.Name
		} else {
			ttsChain.AddFallback(entry.Name, p)
		}
		slog.Info("provider created", "kind", "tts", "name", entry.Name)
	}
	if ttsChain != nil {
		ps.TTS = ttsChain
	}
	return ps, nil
}

// createTranslate builds one translation provider. The "llm" translator is
// assembled from the configured LLM instead of the registry.
func createTranslate(reg *config.Registry, entry config.ProviderEntry, backend llm.Provider) (translate.Provider, error) {
	if entry.Name != "llm" {
		return reg.CreateTranslate(entry)
	}
	if backend == nil {
		return nil, errors.New("llm translator needs providers.llm")
	}
	var opts []llmtranslate.Option
	if style := entry.Option("style", ""); style != "" {
		opts = append(opts, llmtranslate.WithStyle(style))
	}
	if t, ok := optFloat(entry, "temperature"); ok {
		opts = append(opts, llmtranslate.WithTemperature(t))
	}
	return llmtranslate.New(backend, "llm", opts...)
}

// optFloat reads a numeric option. YAML may decode it as an int, a float or
// a quoted string.
func optFloat(entry config.ProviderEntry, key string) (float64, bool) {
	switch v := entry.Options[key].(type) {
	case int:
		return float64(v), true
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}
