// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/retreadlabs/retread/internal/updater"
)

var (
	// Version will be set by the main package
	Version = "dev"
)

var versionCheckUpdates bool

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of retread",
	Long:  `Display the current version of the retread CLI tool.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("retread version %s\n", Version)

		if !versionCheckUpdates {
			return nil
		}

		result, err := updater.NewChecker(Version).Check(cmd.Context())
		if err != nil {
			return fmt.Errorf("update check failed: %w", err)
		}
		if result.UpdateAvailable {
			fmt.Printf("Update available: %s -> %s\n", result.CurrentVersion, result.LatestVersion)
			fmt.Println("Run: go install github.com/retreadlabs/retread/cmd/retread@latest")
		} else {
			fmt.Println("You are on the latest version")
		}
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionCheckUpdates, "check-updates", false, "Query the release channel for a newer version")
	rootCmd.AddCommand(versionCmd)
}
