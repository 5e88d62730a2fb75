// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/retreadlabs/retread/internal/strip"
	"github.com/retreadlabs/retread/internal/wasm"
)

var stripOutput string

var stripCmd = &cobra.Command{
	Use:   "strip <wasm-file>",
	Short: "Eliminate dead functions from a plugin module",
	Long: `Decode a plugin module, walk the call graph from its exports, and drop
locally defined functions nothing reaches. Imports are never removed.

Without -o, performs a dry run and prints statistics only.

Examples:
  retread strip ./plugins/billing.wasm -o ./billing-small.wasm
  retread strip ./plugins/billing.wasm`,
	Args: cobra.ExactArgs(1),
	RunE: stripExec,
}

func stripExec(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading module: %w", err)
	}

	m, err := wasm.Decode(data)
	if err != nil {
		return err
	}

	stats, err := strip.Strip(m)
	if err != nil {
		return err
	}

	out, err := m.Encode()
	if err != nil {
		return err
	}

	fmt.Printf("Total functions:    %d\n", stats.TotalFunctions)
	fmt.Printf("Removed functions:  %d\n", stats.RemovedFunctions)
	fmt.Printf("Original size:      %d bytes\n", len(data))
	fmt.Printf("Stripped size:      %d bytes\n", len(out))

	if len(data) > 0 {
		saved := len(data) - len(out)
		pct := float64(saved) / float64(len(data)) * 100
		fmt.Printf("Saved:              %d bytes (%.1f%%)\n", saved, pct)
	}

	if stripOutput == "" {
		return nil
	}

	if err := os.WriteFile(stripOutput, out, 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	fmt.Printf("Written to:         %s\n", stripOutput)

	return nil
}

func init() {
	stripCmd.Flags().StringVarP(&stripOutput, "output", "o", "", "Output file path (omit for dry run)")
	rootCmd.AddCommand(stripCmd)
}
