// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextcloud/go_voice_bridge/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently translated utterances",
	Long: `Show the most recent utterances from the history store, newest first.

The store is locked while serve or run is active; use GET /api/v1/history
on a running server instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.History.Disabled {
			return fmt.Errorf("history is disabled in the configuration")
		}
		store, err := history.Open(history.Options{Dir: cfg.History.Dir})
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := store.Recent(historyLimit)
		if err != nil {
			return err
		}
		printf(cmd, "%s\n", historyTable(entries))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries")
}

func historyTable(entries []history.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		result := e.Translated
		if e.Error != "" {
			result = "error: " + e.Error
		}
		rows = append(rows, []string{
			e.Time.Local().Format("2006-01-02 15:04:05"),
			e.Direction,
			e.SourceLanguage + " → " + e.TargetLanguage,
			e.Original,
			result,
			fmt.Sprintf("%.2fs", e.Latency.Seconds()),
		})
	}
	return renderTable(
		[]string{"Time", "Direction", "Languages", "Heard", "Spoken", "Latency"},
		rows,
		func(row int) bool { return entries[row].Error != "" },
	)
}
