// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextcloud/go_voice_bridge/internal/languages"
	"github.com/nextcloud/go_voice_bridge/internal/vosk"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List supported languages and their voices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		models := vosk.NewModelManager(cfg.Recognition.VoskModelsDir)
		printf(cmd, "%s\n", languageTable(languages.Supported, models.IsModelAvailable))
		return nil
	},
}

func languageTable(langs []languages.Language, haveModel func(sttCode string) bool) string {
	rows := make([][]string, 0, len(langs))
	for _, l := range langs {
		voices := make([]string, 0, len(l.Voices))
		for _, v := range l.Voices {
			voices = append(voices, v.ID)
		}
		offline := ""
		if _, ok := languages.ModelsList[l.STTCode]; ok {
			offline = "available"
			if haveModel(l.STTCode) {
				offline = "installed"
			}
		}
		rows = append(rows, []string{l.Name, l.STTCode, l.TranslateCode, strings.Join(voices, ", "), offline})
	}
	return renderTable([]string{"Language", "STT", "Translate", "Voices", "Offline model"}, rows, nil)
}
