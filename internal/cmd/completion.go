// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// completionCmd represents the completion command
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate completion script for your shell",
	Long: `To load completions:

Bash:

  $ source <(retread completion bash)

  # To load completions for each session, add to your .bashrc:
  $ retread completion bash > /usr/local/etc/bash_completion.d/retread

Zsh:

  # To load completions for each session, add to your .zshrc:
  $ source <(retread completion zsh)

  # Alternatively, you can add the completion script to your fpath:
  $ retread completion zsh > "${fpath[1]}/_retread"

Fish:

  $ retread completion fish | source

  # To load completions for each session, add to your fish configuration file:
  $ retread completion fish > ~/.config/fish/completions/retread.fish

PowerShell:

  PS> retread completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.ExactValidArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		switch args[0] {
		case "bash":
			cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
