// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/retreadlabs/retread/internal/history"
)

var (
	colorStale  = color.New(color.FgYellow).SprintFunc()
	colorClean  = color.New(color.FgGreen).SprintFunc()
	colorFailed = color.New(color.FgRed).SprintFunc()
)

// formatOutcome renders one pass outcome as an aligned line. staleWord is
// the status label for modules whose references changed: scan prints
// "stale", apply prints "rewritten".
func formatOutcome(e history.Entry, staleWord string) string {
	pad := func(s string) string { return fmt.Sprintf("%-9s", s) }

	switch e.Status {
	case history.StatusRewritten:
		return fmt.Sprintf("%s  %-24s %s", colorStale(pad(staleWord)), e.Module, strings.Join(e.Phrases, "; "))
	case history.StatusClean:
		return fmt.Sprintf("%s  %s", colorClean(pad("clean")), e.Module)
	case history.StatusRejected:
		return fmt.Sprintf("%s  %-24s %s", colorFailed(pad("rejected")), e.Module, e.Detail)
	default:
		return fmt.Sprintf("%s  %-24s %s", colorFailed(pad("failed")), e.Module, e.Detail)
	}
}

func printOutcomes(outcomes []history.Entry, staleWord string) {
	for _, e := range outcomes {
		fmt.Println(formatOutcome(e, staleWord))
	}
}

// manifestPath resolves the manifest location: the command flag wins, then
// the effective configuration.
func manifestPath(flag string) string {
	if flag != "" {
		return flag
	}
	return activeConfig().ManifestPath
}
