package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/lingosync/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	d := config.Diff(cfg, cfg)
	if !d.Empty() {
		t.Errorf("identical configs produced %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("diff = %+v", d)
	}
	if len(d.Restart) != 0 {
		t.Errorf("log level change should not need a restart, got %v", d.Restart)
	}
}

func TestDiff_SettingsAndProcessor(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Settings.TargetLanguage = "fr"
	new.Processor.Debounce = 250 * time.Millisecond

	d := config.Diff(old, new)
	if !d.SettingsChanged || d.NewSettings.TargetLanguage != "fr" {
		t.Errorf("settings diff = %+v", d)
	}
	if !d.ProcessorChanged || d.NewProcessor.Debounce != 250*time.Millisecond {
		t.Errorf("processor diff = %+v", d)
	}
	if d.LogLevelChanged || len(d.Restart) != 0 {
		t.Errorf("unexpected changes: %+v", d)
	}
}

func TestDiff_RestartSections(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Server.ListenAddr = ":9999"
	new.Providers.Translate = append(new.Providers.Translate, config.ProviderEntry{Name: "deepl"})
	new.Translation.CacheSize = 10
	new.Sources.YouTube = true

	d := config.Diff(old, new)
	want := []string{"server", "providers", "translation", "sources"}
	if !slices.Equal(d.Restart, want) {
		t.Errorf("Restart = %v, want %v", d.Restart, want)
	}
	if d.Empty() {
		t.Error("diff should not be empty")
	}
}
