package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// skipConfig marks commands that run without a configuration file.
const skipConfig = "skip-config"

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string

	cc := newCommandContext(&configFlag, &logLevelFlag)

	rootCmd := &cobra.Command{
		Use:           "lingosync",
		Short:         "Realtime subtitle translation and speech for streaming video",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfig] == "true" {
				cc.setupLogger("")
				return nil
			}
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			cc.setupLogger(cfg.Server.LogLevel)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default: ./lingosync.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override the log level (debug, info, warn, error)")

	rootCmd.AddCommand(newServeCommand(cc))
	rootCmd.AddCommand(newTranslateCommand(cc))
	rootCmd.AddCommand(newPlayCommand(cc))
	rootCmd.AddCommand(newParseCommand())
	rootCmd.AddCommand(newVoicesCommand(cc))

	return rootCmd
}

// newLogger builds the process logger writing text records to stderr.
func newLogger(level *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
