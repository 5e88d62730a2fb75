// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/retreadlabs/retread/internal/daemon"
	"github.com/retreadlabs/retread/internal/telemetry"
)

var (
	daemonAddr      string
	daemonManifest  string
	daemonHandlers  string
	daemonAuthToken string
	daemonOTLPURL   string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Serve scan and apply over JSON-RPC",
	Long: `Start a JSON-RPC 2.0 server that rewrites modules for remote callers.
Build farms post a module, get the retrofitted bytes back, and never
touch retread's on-disk pipeline.

Methods:
  - Retread.Scan:  report what a rewrite pass would change
  - Retread.Apply: rewrite the module and return the new bytes

Example:
  retread daemon --manifest api.toml --addr :7423
  retread daemon --manifest api.toml --auth-token secret123`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c := activeConfig()

		otlpURL := daemonOTLPURL
		if otlpURL == "" {
			otlpURL = c.OTLPEndpoint
		}
		cleanup, err := telemetry.Init(ctx, telemetry.Config{
			Endpoint:       otlpURL,
			ServiceVersion: Version,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		registerTelemetryFlushHook(cleanup)

		manifest, engine, err := buildEngine(manifestPath(daemonManifest), daemonHandlers)
		if err != nil {
			return err
		}

		token := daemonAuthToken
		if token == "" {
			token = c.DaemonToken
		}
		addr := daemonAddr
		if addr == "" {
			addr = c.DaemonAddr
		}

		server, err := daemon.NewServer(daemon.Config{
			AuthToken: token,
			Engine:    engine,
			HostABI:   manifest.APIVersion,
		})
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		fmt.Printf("Starting retread daemon on %s\n", addr)
		fmt.Printf("Manifest: %s (api %s)\n", manifest.Path, manifest.APIVersion)
		if token != "" {
			fmt.Println("Authentication: enabled")
		}
		if otlpURL != "" {
			fmt.Printf("Tracing: %s\n", otlpURL)
		}

		return server.Start(ctx, addr)
	},
}

func init() {
	daemonCmd.Flags().StringVar(&daemonAddr, "addr", "", "Listen address (default from config, :7423)")
	daemonCmd.Flags().StringVarP(&daemonManifest, "manifest", "m", "", "Host API catalog manifest (TOML)")
	daemonCmd.Flags().StringVar(&daemonHandlers, "handlers", "", "Directory of compiled handler plugins (*.so)")
	daemonCmd.Flags().StringVar(&daemonAuthToken, "auth-token", "", "Authentication token for API access")
	daemonCmd.Flags().StringVar(&daemonOTLPURL, "otlp-url", "", "OTLP exporter endpoint (enables tracing)")

	rootCmd.AddCommand(daemonCmd)
}
