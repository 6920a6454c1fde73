// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nextcloud/go_voice_bridge/internal/device/portaudio"
	"github.com/nextcloud/go_voice_bridge/internal/service"
)

var (
	runSource string
	runTarget string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Translate headless until interrupted",
	Long: `Bind the four devices from the config, start bidirectional translation
and print status messages until SIGINT or SIGTERM.

Languages come from session.sourceLanguage and session.targetLanguage unless
given as flags. Names, STT codes and translate codes are all accepted.`,
	Example: `  voicebridge run --from "English (US)" --to Hindi`,
	Args:    cobra.NoArgs,
	RunE:    runHeadless,
}

func init() {
	runCmd.Flags().StringVar(&runSource, "from", "", "your language")
	runCmd.Flags().StringVar(&runTarget, "to", "", "the meeting's language")
}

func runHeadless(cmd *cobra.Command, _ []string) error {
	if err := cfg.RequireCredentials(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	host, err := portaudio.NewHost()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, host, func(m service.StatusMessage) {
		mark := " "
		if m.Error {
			mark = "!"
		}
		printf(cmd, "%s %s %s\n", m.Time.Format("15:04:05"), mark, m.Text)
	})
	if err != nil {
		_ = host.Terminate()
		return err
	}
	defer a.Close()

	if err := bindConfigured(a.orch, cfg); err != nil {
		return err
	}

	opts := service.Options{
		SourceLanguage: cfg.Session.SourceLanguage,
		TargetLanguage: cfg.Session.TargetLanguage,
		VoiceToRemote:  cfg.Session.VoiceToRemote,
		VoiceToLocal:   cfg.Session.VoiceToLocal,
	}
	if runSource != "" {
		opts.SourceLanguage = runSource
	}
	if runTarget != "" {
		opts.TargetLanguage = runTarget
	}
	if err := a.orch.Start(opts); err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}
