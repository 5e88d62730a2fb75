// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retreadlabs/retread/internal/errors"
	"github.com/retreadlabs/retread/internal/wasm"
)

func TestGlobalRedirectsMapFailFast(t *testing.T) {
	b := NewGlobalRedirects(testCat(t))

	err := b.Map("env", "tick_count", "env", "no_such_member")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownMember)
	assert.Equal(t, 0, b.Len())

	err = b.Map("env", "tick_count", "gfx", "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownNamespace)
	assert.Equal(t, 0, b.Len())

	// A member inherited from the parent namespace is a valid target.
	require.NoError(t, b.Map("env", "tick_count", "sys", "shimmer_total"))
	assert.Equal(t, 1, b.Len())
}

func TestGlobalRedirectsLastWriteWins(t *testing.T) {
	b := NewGlobalRedirects(testCat(t))
	require.NoError(t, b.Map("env", "tick_count", "env", "frame_budget"))
	require.NoError(t, b.Map("env", "tick_count", "env", "shimmer_total"))
	assert.Equal(t, 1, b.Len())

	m := globalModule()
	h := b.Build()
	changed, err := h.Rewrite(m, &m.Funcs[0], &m.Funcs[0].Body[0])
	require.NoError(t, err)
	require.True(t, changed)

	idx := mustGlobalOperand(t, m.Funcs[0].Body[0])
	ref, ok := m.ImportedGlobalRef(idx)
	require.True(t, ok)
	assert.Equal(t, wasm.SymbolRef{Module: "env", Name: "shimmer_total"}, ref)
}

func TestGlobalRedirectsBuildFreezes(t *testing.T) {
	b := NewGlobalRedirects(testCat(t))
	require.NoError(t, b.Map("env", "tick_count", "env", "shimmer_total"))
	h := b.Build()

	// Mapping more symbols after Build must not leak into the handler.
	require.NoError(t, b.Map("env", "other", "env", "frame_budget"))

	m := globalModule()
	m.Imports[0].Ref = wasm.SymbolRef{Module: "env", Name: "other"}
	changed, err := h.Rewrite(m, &m.Funcs[0], &m.Funcs[0].Body[0])
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestGlobalRedirectHandlerRewrite(t *testing.T) {
	b := NewGlobalRedirects(testCat(t))
	require.NoError(t, b.Map("env", "tick_count", "env", "shimmer_total"))
	h := b.Build()

	m := globalModule()
	fn := &m.Funcs[0]

	// global.get of the retired import.
	changed, err := h.Rewrite(m, fn, &fn.Body[0])
	require.NoError(t, err)
	assert.True(t, changed)

	// global.set of the retired import.
	changed, err = h.Rewrite(m, fn, &fn.Body[5])
	require.NoError(t, err)
	assert.True(t, changed)

	newIdx, ok := m.FindImportedGlobal(wasm.SymbolRef{Module: "env", Name: "shimmer_total"})
	require.True(t, ok)
	assert.Equal(t, newIdx, mustGlobalOperand(t, fn.Body[0]))
	assert.Equal(t, newIdx, mustGlobalOperand(t, fn.Body[5]))

	assert.True(t, h.DidRewrite())
	assert.Equal(t, []string{
		"global env.tick_count -> env.shimmer_total",
		"global env.tick_count -> env.shimmer_total",
	}, h.Phrases())
}

func TestGlobalRedirectHandlerExactMatchOnly(t *testing.T) {
	b := NewGlobalRedirects(testCat(t))
	require.NoError(t, b.Map("env", "tick_count", "env", "shimmer_total"))
	h := b.Build()

	for _, ref := range []wasm.SymbolRef{
		{Module: "env", Name: "Tick_count"},
		{Module: "env", Name: "tick_count "},
		{Module: "env2", Name: "tick_count"},
		{Module: "", Name: "tick_count"},
	} {
		m := globalModule()
		m.Imports[0].Ref = ref
		changed, err := h.Rewrite(m, &m.Funcs[0], &m.Funcs[0].Body[0])
		require.NoError(t, err)
		assert.False(t, changed, "ref %q must not match", ref)
		assert.Equal(t, uint32(0), mustGlobalOperand(t, m.Funcs[0].Body[0]))
	}
}

func TestGlobalRedirectHandlerSkips(t *testing.T) {
	b := NewGlobalRedirects(testCat(t))
	require.NoError(t, b.Map("env", "tick_count", "env", "shimmer_total"))
	h := b.Build()

	m := globalModule()
	fn := &m.Funcs[0]

	// Surviving import: no table entry, untouched.
	changed, err := h.Rewrite(m, fn, &fn.Body[2])
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, uint32(1), mustGlobalOperand(t, fn.Body[2]))

	// Locally defined global: no symbolic reference.
	changed, err = h.Rewrite(m, fn, &fn.Body[4])
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, uint32(2), mustGlobalOperand(t, fn.Body[4]))

	// Instructions that are not global accesses.
	changed, err = h.Rewrite(m, fn, &fn.Body[1])
	require.NoError(t, err)
	assert.False(t, changed)

	assert.False(t, h.DidRewrite())
	assert.Empty(t, h.Phrases())
}

func TestGlobalRedirectHandlerImportReuse(t *testing.T) {
	b := NewGlobalRedirects(testCat(t))
	require.NoError(t, b.Map("env", "tick_count", "env", "shimmer_total"))
	h := b.Build()

	m := globalModule()
	fn := &m.Funcs[0]

	before := len(m.Imports)
	for _, ii := range []int{0, 5} {
		changed, err := h.Rewrite(m, fn, &fn.Body[ii])
		require.NoError(t, err)
		require.True(t, changed)
	}

	// Two rewrites, one new import.
	assert.Equal(t, before+1, len(m.Imports))

	count := 0
	for _, imp := range m.Imports {
		if imp.Ref == (wasm.SymbolRef{Module: "env", Name: "shimmer_total"}) {
			count++
			assert.Equal(t, wasm.KindGlobal, imp.Kind)
			assert.Equal(t, wasm.GlobalType{Type: wasm.ValI64, Mutable: true}, imp.Global)
		}
	}
	assert.Equal(t, 1, count)
}

func TestGlobalRedirectHandlerReusesPreexistingImport(t *testing.T) {
	b := NewGlobalRedirects(testCat(t))
	require.NoError(t, b.Map("env", "tick_count", "env", "keep"))
	h := b.Build()

	m := globalModule()
	fn := &m.Funcs[0]

	before := len(m.Imports)
	changed, err := h.Rewrite(m, fn, &fn.Body[0])
	require.NoError(t, err)
	require.True(t, changed)

	// env.keep was already imported at index 1: no new import, operand
	// points at the existing one, nothing renumbered.
	assert.Equal(t, before, len(m.Imports))
	assert.Equal(t, uint32(1), mustGlobalOperand(t, fn.Body[0]))
	assert.Equal(t, uint32(2), mustGlobalOperand(t, fn.Body[4]))
	assert.Equal(t, uint32(2), m.Exports[1].Index)
}

func TestGlobalRedirectHandlerRenumbersLocals(t *testing.T) {
	b := NewGlobalRedirects(testCat(t))
	require.NoError(t, b.Map("env", "tick_count", "env", "shimmer_total"))
	h := b.Build()

	m := globalModule()
	fn := &m.Funcs[0]

	changed, err := h.Rewrite(m, fn, &fn.Body[0])
	require.NoError(t, err)
	require.True(t, changed)

	// The appended import took index 2; the locally defined global moved
	// to 3 everywhere it is referenced. Surviving import stays at 1.
	assert.Equal(t, uint32(2), mustGlobalOperand(t, fn.Body[0]))
	assert.Equal(t, uint32(1), mustGlobalOperand(t, fn.Body[2]))
	assert.Equal(t, uint32(3), mustGlobalOperand(t, fn.Body[4]))
	assert.Equal(t, uint32(3), m.Exports[1].Index)

	// The not-yet-rewritten set of the retired global still points at 0.
	assert.Equal(t, uint32(0), mustGlobalOperand(t, fn.Body[5]))
}
