// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package main

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/retreadlabs/retread/internal/cmd"
	"github.com/retreadlabs/retread/internal/errors"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

// run executes the CLI and maps failures to exit codes: 0 for success,
// 2 for usage and configuration errors, 130 for an interrupt, 1 for
// everything else.
func run() int {
	// Set version in cmd package (used for the version command and the
	// async update check)
	cmd.Version = Version

	err := cmd.Execute()
	if err == nil {
		return 0
	}

	if cmd.IsInterrupted(err) || cmd.IsCancellation(err) {
		return cmd.InterruptExitCode
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if stderrors.Is(err, errors.ErrInvalidConfig) {
		return 2
	}
	return 1
}
