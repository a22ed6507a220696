package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/lingosync/internal/app"
	"github.com/MrWong99/lingosync/internal/config"
	"github.com/MrWong99/lingosync/internal/observe"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(cc *commandContext) *cobra.Command {
	var listen string
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the extension bridge, HTTP API, probes and metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.ListenAddr = listen
			}
			ctx := cmd.Context()

			shutdownOTel, err := observe.InitProvider(ctx, observe.ProviderConfig{
				ServiceName:    "lingosync",
				ServiceVersion: version,
			})
			if err != nil {
				return fmt.Errorf("init telemetry: %w", err)
			}
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownOTel(flushCtx); err != nil {
					slog.Warn("telemetry shutdown error", "err", err)
				}
			}()

			providers, err := cc.providers(cfg)
			if err != nil {
				return err
			}
			printStartupSummary(cmd.OutOrStdout(), cfg, providers)

			application, err := app.New(ctx, cfg, providers, app.WithLogLevel(cc.level))
			if err != nil {
				return fmt.Errorf("initialise application: %w", err)
			}

			// ── Config hot-reload ─────────────────────────────────────────────
			if watch && cc.configPath != "" {
				w, err := config.NewWatcher(cc.configPath, application.Reload)
				if err != nil {
					slog.Warn("config watcher disabled", "path", cc.configPath, "err", err)
				} else {
					defer w.Stop()
					slog.Info("watching config for changes", "path", cc.configPath)
				}
			}

			slog.Info("server ready, press Ctrl+C to shut down")
			runErr := application.Run(ctx)
			if runErr != nil && !errors.Is(runErr, context.Canceled) {
				slog.Error("run error", "err", runErr)
			}

			// ── Graceful shutdown ─────────────────────────────────────────────
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			slog.Info("stopping")
			if err := application.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			if runErr != nil && !errors.Is(runErr, context.Canceled) {
				return runErr
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Override server.listen_addr")
	cmd.Flags().BoolVar(&watch, "watch", true, "Reload settings, timings and log level when the config file changes")
	return cmd
}

// printStartupSummary writes the effective provider and server setup.
func printStartupSummary(w io.Writer, cfg *config.Config, ps *app.Providers) {
	translators := make([]string, 0, len(ps.Translate))
	for _, p := range ps.Translate {
		translators = append(translators, p.Name())
	}
	rows := [][]string{
		{"Listen addr", cfg.Server.ListenAddr},
		{"TLS", enabled(cfg.Server.TLS != nil)},
		{"Translators", joinOr(translators, "(none)")},
		{"LLM", orNone(cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)},
		{"TTS", orNone(ps.TTSName, "")},
		{"Cache store", orNone(string(cfg.Translation.Store.Driver), "")},
		{"Target language", cfg.Settings.TargetLanguage},
		{"Max sessions", maxSessions(cfg.Server.MaxSessions)},
	}
	fmt.Fprintln(w, renderTable([]string{"lingosync " + version, ""}, rows, nil))
}

func maxSessions(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return fmt.Sprint(n)
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func orNone(name, model string) string {
	switch {
	case name == "":
		return "(none)"
	case model != "":
		return name + " / " + model
	}
	return name
}
