// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/retreadlabs/retread/internal/history"
)

var (
	historyLimit  int
	historyModule string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent retrofit pass outcomes",
	Long: `List pass outcomes from the local history database, newest first.
Filter to one module with --module.

Examples:
  retread history
  retread history -n 50
  retread history --module billing.wasm`,
	Args: cobra.NoArgs,
	RunE: historyExec,
}

func historyExec(cmd *cobra.Command, args []string) error {
	store, err := history.Open(activeConfig().HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()

	var entries []history.Entry
	if historyModule != "" {
		entries, err = store.ByModule(historyModule)
	} else {
		entries, err = store.Recent(historyLimit)
	}
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("No passes recorded yet")
		return nil
	}

	for _, e := range entries {
		fmt.Println(historyLine(e))
	}
	return nil
}

// historyLine renders one stored outcome for the terminal.
func historyLine(e history.Entry) string {
	detail := e.Detail
	if e.Status == history.StatusRewritten {
		detail = strings.Join(e.Phrases, "; ")
	}
	line := fmt.Sprintf("%s  %-9s %-24s",
		e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Status, e.Module)
	if detail == "" {
		return strings.TrimRight(line, " ")
	}
	return line + " " + detail
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of entries to show")
	historyCmd.Flags().StringVar(&historyModule, "module", "", "Only show passes for this module")
	rootCmd.AddCommand(historyCmd)
}
