// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package rewrite

import (
	"fmt"

	"github.com/retreadlabs/retread/internal/catalog"
	"github.com/retreadlabs/retread/internal/wasm"
)

// FuncRedirects builds the redirect table for imported functions. Same
// two-phase shape as GlobalRedirects: fail-fast mapping against the catalog,
// last write wins, Build freezes a copy.
type FuncRedirects struct {
	cat     *catalog.Catalog
	targets map[wasm.SymbolRef]wasm.FuncTarget
}

// NewFuncRedirects returns an empty builder bound to the given catalog.
func NewFuncRedirects(cat *catalog.Catalog) *FuncRedirects {
	return &FuncRedirects{
		cat:     cat,
		targets: make(map[wasm.SymbolRef]wasm.FuncTarget),
	}
}

// Map redirects the retired function fromModule.fromName to the catalog
// member toNamespace.toMember.
func (b *FuncRedirects) Map(fromModule, fromName, toNamespace, toMember string) error {
	target, err := b.cat.ResolveFunc(toNamespace, toMember)
	if err != nil {
		return fmt.Errorf("redirect %s.%s: %w", fromModule, fromName, err)
	}
	b.targets[wasm.SymbolRef{Module: fromModule, Name: fromName}] = target
	return nil
}

// Len reports how many retired symbols are currently mapped.
func (b *FuncRedirects) Len() int {
	return len(b.targets)
}

// Build freezes the table into a handler.
func (b *FuncRedirects) Build() *FuncRedirectHandler {
	targets := make(map[wasm.SymbolRef]wasm.FuncTarget, len(b.targets))
	for from, to := range b.targets {
		targets[from] = to
	}
	return &FuncRedirectHandler{targets: targets}
}

// FuncRedirectHandler rewrites direct calls (call, return_call) that target
// retired imported functions. Indirect calls go through tables, not function
// indexes, so they never carry a symbolic reference to rewrite.
type FuncRedirectHandler struct {
	Recorder
	targets map[wasm.SymbolRef]wasm.FuncTarget
}

func (h *FuncRedirectHandler) Name() string {
	return "func-redirect"
}

func (h *FuncRedirectHandler) Rewrite(m *wasm.Module, fn *wasm.Function, inst *wasm.Instruction) (bool, error) {
	if inst.Op != wasm.OpCall && inst.Op != wasm.OpReturnCall {
		return false, nil
	}
	operand, ok := inst.Operand.(wasm.FuncOperand)
	if !ok {
		return false, fmt.Errorf("%s carries %T, want FuncOperand", inst.Op, inst.Operand)
	}

	ref, ok := m.ImportedFuncRef(operand.Index)
	if !ok {
		return false, nil
	}

	target, ok := h.targets[ref]
	if !ok {
		return false, nil
	}

	idx := m.AddImportedFunc(target)
	inst.Operand = wasm.FuncOperand{Index: idx}
	h.record(fmt.Sprintf("call %s -> %s", ref, target.Ref))
	return true, nil
}
