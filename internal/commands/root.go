// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands implements the voicebridge command line.
package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nextcloud/go_voice_bridge/internal/config"
	"github.com/nextcloud/go_voice_bridge/internal/logging"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

var (
	configPath string
	logLevel   string

	cfg         *config.Config
	zlog        = zap.NewNop()
	flushSentry = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "voicebridge",
	Short: "Real-time two-way speech translation for online meetings",
	Long: `voicebridge listens to your microphone and to the meeting audio,
translates each finished sentence and speaks the translation: yours into the
meeting through a virtual audio cable, theirs into your headphones.

Configuration is read from .env, an optional YAML file (--config or
VB_CONFIG) and environment variables, in that order.

Examples:
  # List audio devices and pick the four roles
  voicebridge devices

  # Start the HTTP control API
  voicebridge serve

  # Translate headless with the devices and languages from the config file
  voicebridge run --config voicebridge.yaml`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		flushSentry()
		_ = zlog.Sync()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(
		serveCmd,
		runCmd,
		devicesCmd,
		testDeviceCmd,
		languagesCmd,
		modelsCmd,
		historyCmd,
	)
}

func setup(cmd *cobra.Command, _ []string) error {
	c, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	z, err := logging.Setup(c.LogLevel)
	if err != nil {
		return err
	}
	zlog, cfg = z, c

	if cfg.Sentry.DSN != "" {
		flush, err := logging.InitSentry(cfg.Sentry.DSN, cfg.Sentry.Environment, Version)
		if err != nil {
			slog.Warn("sentry disabled", "error", err)
		} else {
			flushSentry = flush
		}
	}
	slog.Debug("configuration loaded", "command", cmd.Name(), "engine", cfg.Recognition.Engine, "backend", cfg.Translation.Backend)
	return nil
}

// printf writes command output to stdout, leaving logs on stderr.
func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
