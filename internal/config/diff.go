package config

import (
	"reflect"

	"github.com/MrWong99/lingosync/pkg/types"
)

// ConfigDiff describes what changed between two configs. Log level,
// settings and processor timings can be applied without a restart; anything
// listed in Restart needs one.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	SettingsChanged bool
	NewSettings     types.Settings

	ProcessorChanged bool
	NewProcessor     ProcessorConfig

	// Restart names the top-level sections whose changes only take effect
	// after a restart.
	Restart []string
}

// Empty reports whether nothing changed.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.SettingsChanged && !d.ProcessorChanged && len(d.Restart) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Settings != new.Settings {
		d.SettingsChanged = true
		d.NewSettings = new.Settings
	}
	if old.Processor != new.Processor {
		d.ProcessorChanged = true
		d.NewProcessor = new.Processor
	}

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	if !reflect.DeepEqual(oldServer, newServer) {
		d.Restart = append(d.Restart, "server")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.Restart = append(d.Restart, "providers")
	}
	if !reflect.DeepEqual(old.Translation, new.Translation) {
		d.Restart = append(d.Restart, "translation")
	}
	if old.Sources != new.Sources {
		d.Restart = append(d.Restart, "sources")
	}
	return d
}
