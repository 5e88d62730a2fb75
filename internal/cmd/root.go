// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/retreadlabs/retread/internal/config"
	"github.com/retreadlabs/retread/internal/errors"
	"github.com/retreadlabs/retread/internal/logger"
	"github.com/retreadlabs/retread/internal/shutdown"
	"github.com/retreadlabs/retread/internal/updater"
)

// Persistent flag variables
var (
	logLevelFlag  string
	logFormatFlag string
)

// cfg is the effective configuration, built by the persistent pre-run.
// Commands read it instead of consulting flags or the environment directly.
var cfg *config.Config

// activeConfig returns the effective configuration, falling back to the
// defaults when the pre-run has not populated it.
func activeConfig() *config.Config {
	if cfg != nil {
		return cfg
	}
	return config.DefaultConfig()
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "retread",
	Short: "Keep stale WASM plugins loadable against the current host API",
	Long: `Retread rewrites compiled WebAssembly plugins that were built against an
older host API so they keep loading on the current one. It scans every
instruction of every function body and redirects retired import symbols
to their declared replacements, without re-validating or executing the
module.

Key features:
  - Scan plugin directories and report which modules need rewriting
  - Apply rewrites in place or into a separate output directory
  - Quarantine modules that cannot be decoded or retrofitted
  - Record every pass outcome in a local history database
  - Serve scan/apply over JSON-RPC for build farms and CI

Examples:
  retread scan --manifest api.toml ./plugins     Report stale modules
  retread apply --manifest api.toml --in-place ./plugins
  retread inspect ./plugins/billing.wasm         Show imports and body
  retread history -n 10                          Recent pass outcomes

Get started with 'retread scan --help'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			c.WithLogLevel(logLevelFlag)
		}
		if cmd.Flags().Changed("log-format") {
			c.LogFormat = logFormatFlag
		}
		if err := c.Validate(); err != nil {
			return err
		}

		lvl, _ := logger.ParseLevel(c.LogLevel)
		logger.SetLevel(lvl)
		logger.SetOutput(os.Stderr, c.LogFormat == "json")
		cfg = c

		// Check for updates asynchronously (non-blocking)
		checkForUpdatesAsync()

		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command under signal supervision. An interrupt
// cancels the command context, runs the registered shutdown hooks, and
// surfaces as an error satisfying IsInterrupted.
func Execute() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	coordinator := shutdown.NewCoordinator()
	setShutdownCoordinator(coordinator)
	defer clearShutdownCoordinator()

	return executeWithSignals(ctx, cancel, sigCh, coordinator, func(execCtx context.Context) error {
		return rootCmd.ExecuteContext(execCtx)
	})
}

// executeWithSignals runs exec while watching sigCh. On a signal it cancels
// the exec context, waits for exec to unwind, and reports the interrupt.
// Without a signal, exec's error passes through untouched. The shutdown
// hooks run on both paths; the coordinator only fires them once.
func executeWithSignals(
	ctx context.Context,
	cancel context.CancelFunc,
	sigCh chan os.Signal,
	coordinator *shutdown.Coordinator,
	exec func(context.Context) error,
) error {
	done := make(chan error, 1)
	go func() {
		done <- exec(ctx)
	}()

	select {
	case sig := <-sigCh:
		logger.Logger.Info("Interrupt received, shutting down", "signal", sig.String())
		cancel()
		<-done
		runShutdownHooksWithTimeout(coordinator, shutdownTimeout)
		return errors.ErrInterrupted
	case err := <-done:
		runShutdownHooksWithTimeout(coordinator, shutdownTimeout)
		return err
	}
}

// checkForUpdatesAsync runs the update check in a goroutine to not block CLI startup
func checkForUpdatesAsync() {
	go func() {
		checker := updater.NewChecker(Version)
		checker.CheckInBackground()
	}()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&logLevelFlag,
		"log-level",
		"info",
		"Log verbosity (debug, info, warn, error)",
	)

	rootCmd.PersistentFlags().StringVar(
		&logFormatFlag,
		"log-format",
		"text",
		"Log output format (text, json)",
	)

	// Flag parse failures surface as configuration errors so main can map
	// them to the usage exit code.
	rootCmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return errors.WrapInvalidConfig(err.Error())
	})
}
