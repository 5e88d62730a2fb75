// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/retreadlabs/retread/internal/quarantine"
)

var quarantineForceFlag bool

func quarantineManager() *quarantine.Manager {
	c := activeConfig()
	config := quarantine.DefaultConfig()
	if c.QuarantineMaxBytes > 0 {
		config.MaxSizeBytes = c.QuarantineMaxBytes
	}
	return quarantine.NewManager(c.QuarantineDir, config)
}

var quarantineCmd = &cobra.Command{
	Use:   "quarantine",
	Short: "Manage modules parked after failed passes",
	Long: `Manage the quarantine directory where retread parks modules that could
not be decoded or that faulted mid-rewrite. Quarantined files keep their
original bytes under a timestamped name.

Available subcommands:
  status  - View quarantine size and file count
  clean   - Remove the oldest files using LRU strategy`,
	Example: `  # Check quarantine usage
  retread quarantine status

  # Clean old quarantined modules
  retread quarantine clean

  # Force clean without confirmation
  retread quarantine clean --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var quarantineStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display quarantine statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager := quarantineManager()

		size, err := manager.Size()
		if err != nil {
			return fmt.Errorf("failed to calculate quarantine size: %w", err)
		}

		files, err := manager.List()
		if err != nil {
			return fmt.Errorf("failed to list quarantined files: %w", err)
		}

		c := activeConfig()
		fmt.Printf("Quarantine directory: %s\n", c.QuarantineDir)
		fmt.Printf("Quarantine size: %s\n", quarantine.FormatBytes(size))
		fmt.Printf("Files quarantined: %d\n", len(files))
		fmt.Printf("Maximum size: %s\n", quarantine.FormatBytes(c.QuarantineMaxBytes))

		if size > c.QuarantineMaxBytes {
			fmt.Printf("\nQuarantine size exceeds the maximum. Run 'retread quarantine clean' to free space.\n")
		}

		return nil
	},
}

var quarantineCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the oldest quarantined modules",
	Long: `Delete quarantined files oldest-first until the directory is back under
half its size limit. Use --force to skip the confirmation prompt.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager := quarantineManager()

		if !quarantineForceFlag {
			fmt.Printf("This will delete the oldest files in %s\n", activeConfig().QuarantineDir)
			fmt.Print("Are you sure? (yes/no): ")
			var response string
			if _, err := fmt.Scanln(&response); err != nil {
				return fmt.Errorf("failed to read confirmation input: %w", err)
			}
			if response != "yes" && response != "y" {
				fmt.Println("Quarantine clean cancelled")
				return nil
			}
		}

		status, err := manager.CleanLRU()
		if err != nil {
			return fmt.Errorf("quarantine cleanup failed: %w", err)
		}

		if status.FilesDeleted == 0 {
			fmt.Println("No files needed to be deleted")
			return nil
		}

		fmt.Printf("Deleted %d files, freed %s\n",
			status.FilesDeleted, quarantine.FormatBytes(status.SpaceFreed))
		return nil
	},
}

func init() {
	quarantineCmd.AddCommand(quarantineStatusCmd)
	quarantineCmd.AddCommand(quarantineCleanCmd)

	quarantineCleanCmd.Flags().BoolVarP(&quarantineForceFlag, "force", "f", false, "Skip confirmation prompt")

	rootCmd.AddCommand(quarantineCmd)
}
