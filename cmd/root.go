package cmd

import (
	"fmt"
	"os"
	"strings"

	"potsync/config"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands
type RootOptions struct {
	ConfigFile string
}

// NewRootCommand creates the root command of the potsync CLI
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "potsync",
		Short:         "Keep savings pots in step with credit card balances",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.ConfigFile != "" {
				if err := os.Setenv("POTSYNC_CONFIG", opts.ConfigFile); err != nil {
					return fmt.Errorf("failed to set config path: %w", err)
				}
			}
			cfg, err := config.Init()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return configureLogging(cfg.LogLevel, cfg.LogFormat)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "path to a TOML config file (overrides POTSYNC_CONFIG)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewSyncCommand())
	cmd.AddCommand(NewMigrateCommand())
	cmd.AddCommand(NewCooldownCommand())

	return cmd
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		log.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

func configureLogging(level, format string) error {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(parsed)

	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", format)
	}
	return nil
}
