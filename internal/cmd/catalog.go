// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/retreadlabs/retread/internal/catalog"
)

var catalogManifestFlag string

var catalogCmd = &cobra.Command{
	Use:   "catalog [namespace]",
	Short: "Show the host API surface a manifest declares",
	Long: `Load and validate a catalog manifest. Without arguments, list the
declared namespaces and redirects. With a namespace, print its effective
member surface, including everything inherited from extended namespaces.

Examples:
  retread catalog --manifest api.toml
  retread catalog --manifest api.toml env`,
	Args: cobra.MaximumNArgs(1),
	RunE: catalogExec,
}

func catalogExec(cmd *cobra.Command, args []string) error {
	manifest, err := catalog.LoadManifest(manifestPath(catalogManifestFlag))
	if err != nil {
		return err
	}
	cat, err := manifest.Catalog()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		return printSurface(cat, args[0])
	}

	fmt.Printf("Manifest: %s\n", manifest.Path)
	fmt.Printf("API version: %s\n", cat.APIVersion())

	fmt.Println("\nNamespaces:")
	for _, name := range cat.Namespaces() {
		fmt.Printf("  %s\n", name)
	}

	redirects, err := manifest.ParsedRedirects()
	if err != nil {
		return err
	}
	if len(redirects) > 0 {
		fmt.Println("\nRedirects:")
		for _, r := range redirects {
			since := ""
			if r.Since != "" {
				since = fmt.Sprintf("  (since %s)", r.Since)
			}
			fmt.Printf("  %-6s %s.%s -> %s.%s%s\n",
				r.Kind, r.From.Module, r.From.Name, r.To.Module, r.To.Name, since)
		}
	}

	return nil
}

func printSurface(cat *catalog.Catalog, namespace string) error {
	members, err := cat.Surface(namespace)
	if err != nil {
		return err
	}

	fmt.Printf("Namespace %s (%d members):\n", namespace, len(members))
	for _, m := range members {
		inherited := ""
		if m.DeclaredBy != namespace {
			inherited = fmt.Sprintf("  (from %s)", m.DeclaredBy)
		}
		fmt.Printf("  %-6s %-24s %s%s\n", m.Kind, m.Name, m.Type, inherited)
	}
	return nil
}

func init() {
	catalogCmd.Flags().StringVarP(&catalogManifestFlag, "manifest", "m", "", "Host API catalog manifest (TOML)")
	rootCmd.AddCommand(catalogCmd)
}
