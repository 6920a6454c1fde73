// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nextcloud/go_voice_bridge/internal/languages"
	"github.com/nextcloud/go_voice_bridge/internal/vosk"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage offline recognition models",
}

var modelsPullCmd = &cobra.Command{
	Use:   "pull [language...]",
	Short: "Download offline recognition models",
	Long: `Download the vosk models for the given languages into
recognition.voskModelsDir, or every model when no language is given.
Files already present with the right size are skipped.`,
	Example: `  voicebridge models pull Hindi fr-FR`,
	RunE:    runModelsPull,
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed offline recognition models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		models := vosk.NewModelManager(cfg.Recognition.VoskModelsDir)
		installed := models.ListAvailableModels()
		if len(installed) == 0 {
			printf(cmd, "no models in %s\n", models.Dir())
			return nil
		}
		for _, code := range installed {
			path, err := models.ModelPath(code)
			if err != nil {
				return err
			}
			printf(cmd, "%s\t%s\n", code, path)
		}
		return nil
	},
}

func init() {
	modelsCmd.AddCommand(modelsPullCmd, modelsListCmd)
}

// modelDirs maps language names or codes to vosk model directories.
func modelDirs(keys []string) ([]string, error) {
	dirs := make([]string, 0, len(keys))
	for _, key := range keys {
		lang, err := languages.Lookup(key)
		if err != nil {
			return nil, err
		}
		dir, ok := languages.ModelsList[lang.STTCode]
		if !ok {
			return nil, fmt.Errorf("%w: %s", vosk.ErrNoModel, lang.Name)
		}
		dirs = append(dirs, dir)
	}
	return dirs, nil
}

func runModelsPull(cmd *cobra.Command, args []string) error {
	dirs, err := modelDirs(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	d := vosk.NewDownloader()
	d.Progress = func(done, total int) {
		printf(cmd, "\rdownloading file %d/%d", done, total)
	}
	if err := d.DownloadModels(ctx, cfg.Recognition.VoskModelsDir, dirs...); err != nil {
		return err
	}
	printf(cmd, "\nmodels ready in %s\n", cfg.Recognition.VoskModelsDir)
	return nil
}
