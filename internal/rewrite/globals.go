// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package rewrite

import (
	"fmt"

	"github.com/retreadlabs/retread/internal/catalog"
	"github.com/retreadlabs/retread/internal/wasm"
)

// GlobalRedirects builds the redirect table for imported globals. Mapping is
// fail-fast: every target is resolved through the catalog when it is mapped,
// so a handler can never be built around a symbol the host does not offer.
type GlobalRedirects struct {
	cat     *catalog.Catalog
	targets map[wasm.SymbolRef]wasm.GlobalTarget
}

// NewGlobalRedirects returns an empty builder bound to the given catalog.
func NewGlobalRedirects(cat *catalog.Catalog) *GlobalRedirects {
	return &GlobalRedirects{
		cat:     cat,
		targets: make(map[wasm.SymbolRef]wasm.GlobalTarget),
	}
}

// Map redirects the retired symbol fromModule.fromName to the catalog member
// toNamespace.toMember. The target must resolve (inherited members count);
// an unresolvable target is an error and the mapping is not recorded.
// Mapping the same retired symbol twice keeps the later entry.
func (b *GlobalRedirects) Map(fromModule, fromName, toNamespace, toMember string) error {
	target, err := b.cat.ResolveGlobal(toNamespace, toMember)
	if err != nil {
		return fmt.Errorf("redirect %s.%s: %w", fromModule, fromName, err)
	}
	b.targets[wasm.SymbolRef{Module: fromModule, Name: fromName}] = target
	return nil
}

// Len reports how many retired symbols are currently mapped.
func (b *GlobalRedirects) Len() int {
	return len(b.targets)
}

// Build freezes the table into a handler. The handler owns a copy: mapping
// more symbols on the builder afterwards does not change the handler.
func (b *GlobalRedirects) Build() *GlobalRedirectHandler {
	targets := make(map[wasm.SymbolRef]wasm.GlobalTarget, len(b.targets))
	for from, to := range b.targets {
		targets[from] = to
	}
	return &GlobalRedirectHandler{targets: targets}
}

// GlobalRedirectHandler rewrites global.get and global.set instructions that
// reference retired imported globals.
type GlobalRedirectHandler struct {
	Recorder
	targets map[wasm.SymbolRef]wasm.GlobalTarget
}

func (h *GlobalRedirectHandler) Name() string {
	return "global-redirect"
}

func (h *GlobalRedirectHandler) Rewrite(m *wasm.Module, fn *wasm.Function, inst *wasm.Instruction) (bool, error) {
	if inst.Op != wasm.OpGlobalGet && inst.Op != wasm.OpGlobalSet {
		return false, nil
	}
	operand, ok := inst.Operand.(wasm.GlobalOperand)
	if !ok {
		return false, fmt.Errorf("%s carries %T, want GlobalOperand", inst.Op, inst.Operand)
	}

	// Locally defined globals carry no symbolic reference.
	ref, ok := m.ImportedGlobalRef(operand.Index)
	if !ok {
		return false, nil
	}

	target, ok := h.targets[ref]
	if !ok {
		return false, nil
	}

	idx := m.AddImportedGlobal(target)
	inst.Operand = wasm.GlobalOperand{Index: idx}
	h.record(fmt.Sprintf("global %s -> %s", ref, target.Ref))
	return true, nil
}
