// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package wasm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexSpaceHelpers(t *testing.T) {
	bin := newTestModule().
		addFuncType().
		addFuncImport("env", "log", 0).
		addFuncImport("env", "abort", 0).
		addGlobalImport("env", "tick_count", ValI64, true).
		addFunction(0, []byte{0x01}).
		build()

	mod, err := Decode(bin)
	require.NoError(t, err)

	assert.Equal(t, uint32(2), mod.NumImportedFuncs())
	assert.Equal(t, uint32(1), mod.NumImportedGlobals())

	ref, ok := mod.ImportedFuncRef(1)
	require.True(t, ok)
	assert.Equal(t, SymbolRef{Module: "env", Name: "abort"}, ref)

	// Index 2 is the locally defined function, not a symbolic reference.
	_, ok = mod.ImportedFuncRef(2)
	assert.False(t, ok)

	gref, ok := mod.ImportedGlobalRef(0)
	require.True(t, ok)
	assert.Equal(t, SymbolRef{Module: "env", Name: "tick_count"}, gref)

	idx, ok := mod.FindImportedFunc(SymbolRef{Module: "env", Name: "abort"})
	require.True(t, ok)
	assert.Equal(t, uint32(1), idx)

	_, ok = mod.FindImportedFunc(SymbolRef{Module: "env", Name: "missing"})
	assert.False(t, ok)

	gidx, ok := mod.FindImportedGlobal(SymbolRef{Module: "env", Name: "tick_count"})
	require.True(t, ok)
	assert.Equal(t, uint32(0), gidx)
}

func TestEnsureTypeReusesExistingEntry(t *testing.T) {
	mod := &Module{Types: []FuncType{
		{Params: []ValType{ValI32}},
		{Results: []ValType{ValI64}},
	}}

	assert.Equal(t, uint32(1), mod.EnsureType(FuncType{Results: []ValType{ValI64}}))
	assert.Len(t, mod.Types, 2)

	assert.Equal(t, uint32(2), mod.EnsureType(FuncType{Params: []ValType{ValF32}}))
	assert.Len(t, mod.Types, 3)
}

func TestAddImportedGlobalRenumbersLocals(t *testing.T) {
	bin := newTestModule().
		addFuncType().
		addGlobalImport("env", "tick_count", ValI64, true).
		addGlobal(ValI32, true, []byte{0x41, 0x00}).
		addFunction(0, []byte{
			0x23, 0x00, // global.get 0 (import)
			0x1a,       // drop
			0x23, 0x01, // global.get 1 (local)
			0x24, 0x01, // global.set 1 (local)
		}).
		addExport("counter", KindGlobal, 1).
		build()

	mod, err := Decode(bin)
	require.NoError(t, err)

	idx := mod.AddImportedGlobal(GlobalTarget{
		Ref:  SymbolRef{Module: "env", Name: "shimmer_total"},
		Type: GlobalType{Type: ValI64, Mutable: true},
	})
	assert.Equal(t, uint32(1), idx)
	require.Len(t, mod.Imports, 2)
	assert.Equal(t, uint32(2), mod.NumImportedGlobals())

	body := mod.Funcs[0].Body
	// The import reference is untouched; local references shift by one.
	assert.Equal(t, GlobalOperand{Index: 0}, body[0].Operand)
	assert.Equal(t, GlobalOperand{Index: 2}, body[2].Operand)
	assert.Equal(t, GlobalOperand{Index: 2}, body[3].Operand)

	assert.Equal(t, uint32(2), mod.Exports[0].Index)
}

func TestAddImportedGlobalReusesExistingImport(t *testing.T) {
	bin := newTestModule().
		addFuncType().
		addGlobalImport("env", "shimmer_total", ValI64, true).
		addFunction(0, []byte{0x23, 0x00, 0x1a}).
		build()

	mod, err := Decode(bin)
	require.NoError(t, err)

	idx := mod.AddImportedGlobal(GlobalTarget{
		Ref:  SymbolRef{Module: "env", Name: "shimmer_total"},
		Type: GlobalType{Type: ValI64, Mutable: true},
	})
	assert.Equal(t, uint32(0), idx)
	assert.Len(t, mod.Imports, 1)

	// References never shift on reuse.
	assert.Equal(t, GlobalOperand{Index: 0}, mod.Funcs[0].Body[0].Operand)
}

func TestAddImportedFuncRenumbersLocals(t *testing.T) {
	bin := newTestModule().
		addFuncType().
		addFuncImport("env", "log", 0).
		addFunction(0, []byte{0x10, 0x02}). // call 2 (local)
		addFunction(0, []byte{0x10, 0x00}). // call 0 (import)
		addExport("main", KindFunc, 2).
		addTable().
		setStart(2).
		addElementSegment([]uint32{1, 2}).
		build()

	mod, err := Decode(bin)
	require.NoError(t, err)

	idx := mod.AddImportedFunc(FuncTarget{
		Ref:  SymbolRef{Module: "env", Name: "log_line"},
		Type: FuncType{Params: []ValType{ValI32, ValI32}},
	})
	assert.Equal(t, uint32(1), idx)
	require.Len(t, mod.Imports, 2)

	// The new signature was interned in the type section.
	require.Len(t, mod.Types, 2)
	assert.Equal(t, FuncType{Params: []ValType{ValI32, ValI32}}, mod.Types[1])

	// Local function references shift; the import reference does not.
	assert.Equal(t, FuncOperand{Index: 3}, mod.Funcs[0].Body[0].Operand)
	assert.Equal(t, FuncOperand{Index: 0}, mod.Funcs[1].Body[0].Operand)

	assert.Equal(t, uint32(3), mod.Exports[0].Index)
	assert.Equal(t, []uint32{2, 3}, mod.Elems[0].FuncIndexes)
	require.NotNil(t, mod.Start)
	assert.Equal(t, uint32(3), *mod.Start)
}

func TestAddImportedFuncModuleStaysEncodable(t *testing.T) {
	bin := newTestModule().
		addFuncType().
		addFuncImport("env", "log", 0).
		addFunction(0, []byte{0x10, 0x01}).
		addExport("main", KindFunc, 1).
		build()

	mod, err := Decode(bin)
	require.NoError(t, err)

	mod.AddImportedFunc(FuncTarget{
		Ref:  SymbolRef{Module: "env", Name: "log_line"},
		Type: FuncType{},
	})

	out, err := mod.Encode()
	require.NoError(t, err)

	again, err := Decode(out)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), again.NumImportedFuncs())
	assert.Equal(t, FuncOperand{Index: 2}, again.Funcs[0].Body[0].Operand)
	assert.Equal(t, uint32(2), again.Exports[0].Index)
}

func TestABIVersionSection(t *testing.T) {
	mod := &Module{}
	_, ok := mod.ABIVersion()
	assert.False(t, ok)

	mod.SetABIVersion("2.3.0")
	version, ok := mod.ABIVersion()
	require.True(t, ok)
	assert.Equal(t, "2.3.0", version)

	mod.SetABIVersion("2.4.0")
	version, _ = mod.ABIVersion()
	assert.Equal(t, "2.4.0", version)
	assert.Len(t, mod.Customs, 1)

	out, err := mod.Encode()
	require.NoError(t, err)

	decoded, err := Decode(out)
	require.NoError(t, err)
	version, ok = decoded.ABIVersion()
	require.True(t, ok)
	assert.Equal(t, "2.4.0", version)
}

func TestSymbolRefString(t *testing.T) {
	assert.Equal(t, "env.tick_count", SymbolRef{Module: "env", Name: "tick_count"}.String())
	assert.Equal(t, "host.render.blit", SymbolRef{Module: "host.render", Name: "blit"}.String())
}

func TestFuncTypeString(t *testing.T) {
	ft := FuncType{Params: []ValType{ValI32, ValI64}, Results: []ValType{ValF64}}
	assert.Equal(t, "(i32, i64) -> (f64)", ft.String())
	assert.Equal(t, "() -> ()", FuncType{}.String())
}
