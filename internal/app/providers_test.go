package app_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/lingosync/internal/app"
	"github.com/MrWong99/lingosync/internal/config"
	"github.com/MrWong99/lingosync/internal/resilience"
	"github.com/MrWong99/lingosync/pkg/provider/llm"
	llmmock "github.com/MrWong99/lingosync/pkg/provider/llm/mock"
	"github.com/MrWong99/lingosync/pkg/provider/translate"
	tmock "github.com/MrWong99/lingosync/pkg/provider/translate/mock"
	"github.com/MrWong99/lingosync/pkg/provider/tts"
	ttsmock "github.com/MrWong99/lingosync/pkg/provider/tts/mock"
)

func mockRegistry() *config.Registry {
	reg := config.NewRegistry()
	reg.RegisterTranslate("mock", func(e config.ProviderEntry) (translate.Provider, error) {
		return &tmock.Provider{ProviderName: e.Name}, nil
	})
	reg.RegisterTranslate("broken", func(config.ProviderEntry) (translate.Provider, error) {
		return nil, errors.New("missing api key")
	})
	reg.RegisterLLM("mock", func(config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{}, nil
	})
	reg.RegisterTTS("mock", func(config.ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{}, nil
	})
	reg.RegisterTTS("backup", func(config.ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{}, nil
	})
	return reg
}

func TestBuildProviders_FullChain(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Providers = config.ProvidersConfig{
		Translate: []config.ProviderEntry{
			{Name: "mock"},
			{Name: "llm", Options: map[string]any{"style": "casual", "temperature": 0.3}},
			{Name: "unregistered"},
		},
		LLM: config.ProviderEntry{Name: "mock", Model: "tiny"},
		TTS: []config.ProviderEntry{{Name: "mock"}, {Name: "backup"}},
	}

	ps, err := app.BuildProviders(cfg, mockRegistry())
	if err != nil {
		t.Fatalf("BuildProviders() error: %v", err)
	}

	names := make([]string, 0, len(ps.Translate))
	for _, p := range ps.Translate {
		names = append(names, p.Name())
	}
	if want := []string{"mock", "llm"}; !slices.Equal(names, want) {
		t.Errorf("translate chain = %v, want %v", names, want)
	}
	if ps.LLM == nil {
		t.Fatal("LLM is nil")
	}
	chain, ok := ps.TTS.(*resilience.TTSFallback)
	if !ok {
		t.Fatalf("TTS = %T, want *resilience.TTSFallback", ps.TTS)
	}
	if got := len(chain.Status()); got != 2 {
		t.Errorf("tts chain length = %d, want 2", got)
	}
	if ps.TTSName != "mock" {
		t.Errorf("TTSName = %q, want mock", ps.TTSName)
	}
}

func TestBuildProviders_Empty(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Providers = config.ProvidersConfig{}
	ps, err := app.BuildProviders(cfg, mockRegistry())
	if err != nil {
		t.Fatalf("BuildProviders() error: %v", err)
	}
	if len(ps.Translate) != 0 || ps.LLM != nil || ps.TTS != nil {
		t.Errorf("providers = %+v, want none", ps)
	}
}

func TestBuildProviders_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		providers config.ProvidersConfig
	}{
		{
			name:      "factory error",
			providers: config.ProvidersConfig{Translate: []config.ProviderEntry{{Name: "broken"}}},
		},
		{
			name:      "llm translator without llm",
			providers: config.ProvidersConfig{Translate: []config.ProviderEntry{{Name: "llm"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.Default()
			cfg.Providers = tt.providers
			if _, err := app.BuildProviders(cfg, mockRegistry()); err == nil {
				t.Error("BuildProviders() returned nil error")
			}
		})
	}
}

func TestRegisterBuiltins(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	app.RegisterBuiltins(reg)

	for kind, want := range map[string][]string{
		"translate": {"deepl", "google", "gtx"},
		"llm":       {"anthropic", "ollama", "openai"},
		"tts":       {"coqui", "elevenlabs"},
	} {
		got := reg.Names(kind)
		for _, name := range want {
			if !slices.Contains(got, name) {
				t.Errorf("%s providers %v lack %q", kind, got, name)
			}
		}
	}

	// The keyless provider needs no credentials.
	p, err := reg.CreateTranslate(config.ProviderEntry{Name: "gtx"})
	if err != nil {
		t.Fatalf("CreateTranslate(gtx) error: %v", err)
	}
	if p.Name() != "gtx" {
		t.Errorf("Name() = %q, want gtx", p.Name())
	}
}
