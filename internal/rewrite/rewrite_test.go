// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package rewrite

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retreadlabs/retread/internal/catalog"
	"github.com/retreadlabs/retread/internal/wasm"
)

// testCat declares the host surface the redirect tests resolve against:
// env is the core namespace, sys inherits it.
func testCat(t *testing.T) *catalog.Catalog {
	t.Helper()
	c := catalog.New("2.3.0")
	require.NoError(t, c.Add(catalog.Namespace{
		Name: "env",
		Globals: map[string]catalog.GlobalDecl{
			"shimmer_total": {Type: wasm.ValI64, Mutable: true},
			"frame_budget":  {Type: wasm.ValI32},
			"keep":          {Type: wasm.ValI32},
		},
		Funcs: map[string]catalog.FuncDecl{
			"log_line": {Params: []wasm.ValType{wasm.ValI32, wasm.ValI32}},
		},
	}))
	require.NoError(t, c.Add(catalog.Namespace{
		Name:    "sys",
		Extends: "env",
		Funcs: map[string]catalog.FuncDecl{
			"now_millis": {Results: []wasm.ValType{wasm.ValI64}},
		},
	}))
	return c
}

// globalModule builds a module whose body touches a retired imported global
// (env.tick_count, index 0), a surviving imported global (env.keep, index
// 1), and a locally defined one (index 2, exported as "counter").
func globalModule() *wasm.Module {
	return &wasm.Module{
		Types: []wasm.FuncType{{}},
		Imports: []wasm.Import{
			{Ref: wasm.SymbolRef{Module: "env", Name: "tick_count"}, Kind: wasm.KindGlobal,
				Global: wasm.GlobalType{Type: wasm.ValI64, Mutable: true}},
			{Ref: wasm.SymbolRef{Module: "env", Name: "keep"}, Kind: wasm.KindGlobal,
				Global: wasm.GlobalType{Type: wasm.ValI32}},
		},
		Globals: []wasm.Global{
			{Type: wasm.GlobalType{Type: wasm.ValI32, Mutable: true}, Init: []wasm.Instruction{
				{Op: wasm.OpI32Const, Operand: wasm.I32Operand{Value: 0}},
				{Op: wasm.OpEnd},
			}},
		},
		Funcs: []wasm.Function{
			{TypeIndex: 0, Body: []wasm.Instruction{
				{Op: wasm.OpGlobalGet, Operand: wasm.GlobalOperand{Index: 0}},
				{Op: wasm.OpDrop},
				{Op: wasm.OpGlobalGet, Operand: wasm.GlobalOperand{Index: 1}},
				{Op: wasm.OpDrop},
				{Op: wasm.OpGlobalGet, Operand: wasm.GlobalOperand{Index: 2}},
				{Op: wasm.OpGlobalSet, Operand: wasm.GlobalOperand{Index: 0}},
				{Op: wasm.OpEnd},
			}},
		},
		Exports: []wasm.Export{
			{Name: "boot", Kind: wasm.KindFunc, Index: 0},
			{Name: "counter", Kind: wasm.KindGlobal, Index: 2},
		},
	}
}

// callModule builds a module that calls a retired imported function
// (env.print, index 0) and itself (index 1).
func callModule() *wasm.Module {
	return &wasm.Module{
		Types: []wasm.FuncType{
			{},
			{Params: []wasm.ValType{wasm.ValI32, wasm.ValI32}},
		},
		Imports: []wasm.Import{
			{Ref: wasm.SymbolRef{Module: "env", Name: "print"}, Kind: wasm.KindFunc, TypeIndex: 1},
		},
		Funcs: []wasm.Function{
			{TypeIndex: 0, Body: []wasm.Instruction{
				{Op: wasm.OpI32Const, Operand: wasm.I32Operand{Value: 8}},
				{Op: wasm.OpI32Const, Operand: wasm.I32Operand{Value: 4}},
				{Op: wasm.OpCall, Operand: wasm.FuncOperand{Index: 0}},
				{Op: wasm.OpCall, Operand: wasm.FuncOperand{Index: 1}},
				{Op: wasm.OpEnd},
			}},
		},
		Exports: []wasm.Export{
			{Name: "boot", Kind: wasm.KindFunc, Index: 1},
		},
	}
}

func mustGlobalOperand(t *testing.T, inst wasm.Instruction) uint32 {
	t.Helper()
	operand, ok := inst.Operand.(wasm.GlobalOperand)
	require.True(t, ok, "instruction %s carries %T", inst.Op, inst.Operand)
	return operand.Index
}

func mustFuncOperand(t *testing.T, inst wasm.Instruction) uint32 {
	t.Helper()
	operand, ok := inst.Operand.(wasm.FuncOperand)
	require.True(t, ok, "instruction %s carries %T", inst.Op, inst.Operand)
	return operand.Index
}
