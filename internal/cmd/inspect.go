// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/retreadlabs/retread/internal/quarantine"
	"github.com/retreadlabs/retread/internal/wasm"
)

var inspectNoBody bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <wasm-file>",
	Short: "Show a module's imports, ABI claim, and instruction listing",
	Long: `Decode a plugin module and print what retread sees: the ABI version it
claims, its import surface with symbolic references, and every function
body as a mnemonic listing. Instructions that reference an imported
symbol are annotated with it.

Examples:
  retread inspect ./plugins/billing.wasm
  retread inspect --no-body ./plugins/billing.wasm`,
	Args: cobra.ExactArgs(1),
	RunE: inspectExec,
}

func inspectExec(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading module: %w", err)
	}

	m, err := wasm.Decode(data)
	if err != nil {
		return err
	}

	fmt.Printf("Module: %s (%s)\n", filepath.Base(args[0]), quarantine.FormatBytes(int64(len(data))))
	if abi, ok := m.ABIVersion(); ok {
		fmt.Printf("ABI version: %s\n", abi)
	} else {
		fmt.Println("ABI version: (none)")
	}
	fmt.Printf("Types: %d  Imports: %d  Funcs: %d  Globals: %d  Exports: %d\n",
		len(m.Types), len(m.Imports), len(m.Funcs), len(m.Globals), len(m.Exports))

	if len(m.Imports) > 0 {
		fmt.Println("\nImports:")
		for _, imp := range m.Imports {
			fmt.Printf("  %-6s %s.%s\n", imp.Kind, imp.Ref.Module, imp.Ref.Name)
		}
	}

	if len(m.Exports) > 0 {
		fmt.Println("\nExports:")
		for _, exp := range m.Exports {
			fmt.Printf("  %-6s %s (index %d)\n", exp.Kind, exp.Name, exp.Index)
		}
	}

	if inspectNoBody {
		return nil
	}

	for i := range m.Funcs {
		idx := m.NumImportedFuncs() + uint32(i)
		fmt.Printf("\nfunc[%d]%s:\n", idx, exportedAs(m, wasm.KindFunc, idx))
		for _, inst := range m.Funcs[i].Body {
			fmt.Printf("  %s%s\n", inst, importAnnotation(m, inst))
		}
	}

	return nil
}

// importAnnotation names the symbolic reference behind an instruction whose
// operand points into an import index space, or returns "".
func importAnnotation(m *wasm.Module, inst wasm.Instruction) string {
	switch op := inst.Operand.(type) {
	case wasm.FuncOperand:
		if ref, ok := m.ImportedFuncRef(op.Index); ok {
			return fmt.Sprintf("  ;; %s.%s", ref.Module, ref.Name)
		}
	case wasm.GlobalOperand:
		if ref, ok := m.ImportedGlobalRef(op.Index); ok {
			return fmt.Sprintf("  ;; %s.%s", ref.Module, ref.Name)
		}
	}
	return ""
}

// exportedAs renders the export name for an index, if the module exports it.
func exportedAs(m *wasm.Module, kind wasm.ImportKind, idx uint32) string {
	for _, exp := range m.Exports {
		if exp.Kind == kind && exp.Index == idx {
			return fmt.Sprintf(" (export %q)", exp.Name)
		}
	}
	return ""
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectNoBody, "no-body", false, "Skip the per-function instruction listing")
	rootCmd.AddCommand(inspectCmd)
}
