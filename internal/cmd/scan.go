// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/retreadlabs/retread/internal/loader"
)

var (
	scanManifest string
	scanHandlers string
)

var scanCmd = &cobra.Command{
	Use:   "scan <dir|file>",
	Short: "Report which plugin modules reference retired host symbols",
	Long: `Decode every plugin module under a directory (or one module file),
run the rewrite chain in memory, and report what would change. Nothing
is written: scan is the dry-run counterpart of 'retread apply'.

Examples:
  retread scan --manifest api.toml ./plugins
  retread scan --manifest api.toml ./plugins/billing.wasm
  retread scan --manifest api.toml --handlers ./handlers ./plugins`,
	Args: cobra.ExactArgs(1),
	RunE: scanExec,
}

func scanExec(cmd *cobra.Command, args []string) error {
	manifest, engine, err := buildEngine(manifestPath(scanManifest), scanHandlers)
	if err != nil {
		return err
	}

	l, err := loader.New(loader.Options{
		Dir:      args[0],
		Manifest: manifest,
		Engine:   engine,
		DryRun:   true,
	})
	if err != nil {
		return err
	}

	summary, err := l.Run(cmd.Context())
	if err != nil {
		return err
	}

	printOutcomes(summary.Outcomes, "stale")
	fmt.Printf("\n%d scanned: %d stale, %d clean, %d rejected, %d failed\n",
		summary.Scanned, summary.Rewritten, summary.Clean, summary.Rejected, summary.Failed)

	return nil
}

func init() {
	scanCmd.Flags().StringVarP(&scanManifest, "manifest", "m", "", "Host API catalog manifest (TOML)")
	scanCmd.Flags().StringVar(&scanHandlers, "handlers", "", "Directory of compiled handler plugins (*.so)")
	rootCmd.AddCommand(scanCmd)
}
