package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/MrWong99/lingosync/internal/app"
	"github.com/MrWong99/lingosync/internal/config"
)

// defaultConfigPath is used when --config is not given and the file exists.
const defaultConfigPath = "lingosync.yaml"

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	// level is shared by the process logger so a config reload can change it.
	level *slog.LevelVar

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		level:        new(slog.LevelVar),
	}
}

// ensureConfig loads the configuration once. Without --config the default
// file is used when present and the built-in defaults otherwise.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(*c.configFlag)
		explicit := path != ""
		if !explicit {
			path = defaultConfigPath
		}

		cfg, err := config.Load(path)
		switch {
		case err == nil:
			c.config, c.configPath = cfg, path
		case errors.Is(err, os.ErrNotExist) && !explicit:
			cfg = config.Default()
			config.ApplyEnv(cfg, os.Getenv)
			c.config = cfg
		case errors.Is(err, os.ErrNotExist):
			c.configErr = fmt.Errorf("config file %q not found", path)
		default:
			c.configErr = err
		}
	})
	return c.config, c.configErr
}

// setupLogger installs the default logger. --log-level wins over the
// configured level.
func (c *commandContext) setupLogger(configured config.LogLevel) {
	level := configured
	if flag := config.LogLevel(strings.ToLower(strings.TrimSpace(*c.logLevelFlag))); flag != "" {
		if flag.IsValid() {
			level = flag
		} else {
			defer slog.Warn("ignoring unknown log level", "level", string(flag))
		}
	}
	c.level.Set(level.Slog())
	slog.SetDefault(newLogger(c.level))
}

// providers instantiates every provider named in cfg.
func (c *commandContext) providers(cfg *config.Config) (*app.Providers, error) {
	reg := config.NewRegistry()
	app.RegisterBuiltins(reg)
	ps, err := app.BuildProviders(cfg, reg)
	if err != nil {
		return nil, fmt.Errorf("build providers: %w", err)
	}
	return ps, nil
}
