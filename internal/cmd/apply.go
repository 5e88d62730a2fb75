// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/retreadlabs/retread/internal/errors"
	"github.com/retreadlabs/retread/internal/history"
	"github.com/retreadlabs/retread/internal/loader"
	"github.com/retreadlabs/retread/internal/logger"
)

var (
	applyManifest string
	applyHandlers string
	applyOut      string
	applyInPlace  bool
)

var applyCmd = &cobra.Command{
	Use:   "apply <dir|file>",
	Short: "Rewrite stale plugin modules against the current host API",
	Long: `Run the retrofit pass for real: decode each module, rewrite retired
import references, and write the result. Modules that cannot be decoded
or that fault mid-rewrite are moved to quarantine; every outcome lands
in the pass history.

With --out, rewritten modules are written to a separate directory and
the originals stay untouched. With --in-place, modules are replaced
where they are.

Examples:
  retread apply --manifest api.toml --out ./retrofitted ./plugins
  retread apply --manifest api.toml --in-place ./plugins
  retread apply --manifest api.toml --in-place ./plugins/billing.wasm`,
	Args: cobra.ExactArgs(1),
	RunE: applyExec,
}

func applyExec(cmd *cobra.Command, args []string) error {
	if applyInPlace && applyOut != "" {
		return errors.WrapInvalidConfig("--in-place and --out are mutually exclusive")
	}

	manifest, engine, err := buildEngine(manifestPath(applyManifest), applyHandlers)
	if err != nil {
		return err
	}

	outDir, err := resolveOutputDir(args[0])
	if err != nil {
		return err
	}

	c := activeConfig()
	store, err := history.Open(c.HistoryPath())
	if err != nil {
		logger.Logger.Warn("pass history unavailable", "error", err)
	} else {
		registerHistoryCloseHook(store)
	}

	l, err := loader.New(loader.Options{
		Dir:           args[0],
		OutputDir:     outDir,
		QuarantineDir: c.QuarantineDir,
		Manifest:      manifest,
		Engine:        engine,
		History:       store,
	})
	if err != nil {
		return err
	}

	summary, err := l.Run(cmd.Context())
	if err != nil {
		return err
	}

	printOutcomes(summary.Outcomes, "rewritten")
	fmt.Printf("\n%d scanned: %d rewritten, %d clean, %d rejected, %d failed\n",
		summary.Scanned, summary.Rewritten, summary.Clean, summary.Rejected, summary.Failed)

	return nil
}

// resolveOutputDir picks where rewritten modules go: --out, or the target
// itself for --in-place, or the configured output directory.
func resolveOutputDir(target string) (string, error) {
	if applyOut != "" {
		return applyOut, nil
	}
	if applyInPlace {
		info, err := os.Stat(target)
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", target, err)
		}
		if info.IsDir() {
			return target, nil
		}
		return filepath.Dir(target), nil
	}
	if dir := activeConfig().OutputDir; dir != "" {
		return dir, nil
	}
	return "", errors.WrapInvalidConfig("no output directory: pass --out or --in-place")
}

func init() {
	applyCmd.Flags().StringVarP(&applyManifest, "manifest", "m", "", "Host API catalog manifest (TOML)")
	applyCmd.Flags().StringVar(&applyHandlers, "handlers", "", "Directory of compiled handler plugins (*.so)")
	applyCmd.Flags().StringVarP(&applyOut, "out", "o", "", "Directory for rewritten modules")
	applyCmd.Flags().BoolVar(&applyInPlace, "in-place", false, "Replace modules where they are")
	rootCmd.AddCommand(applyCmd)
}
