// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

// Package wasm decodes, mutates, and re-encodes WebAssembly binary modules.
// The model is built for reference retrofitting: every function body is
// decoded to instructions, imports are addressable by symbolic name, and new
// imports can be appended without the caller tracking index arithmetic.
package wasm

import (
	"fmt"
	"strings"

	"github.com/retreadlabs/retread/internal/errors"
)

// SymbolRef names an imported entity by its two-level import name. Identity
// is exact string equality on both fields; no case folding, no trimming.
type SymbolRef struct {
	Module string
	Name   string
}

func (r SymbolRef) String() string {
	return r.Module + "." + r.Name
}

// ValType is a value type byte as it appears in the binary format.
type ValType byte

const (
	ValI32       ValType = 0x7f
	ValI64       ValType = 0x7e
	ValF32       ValType = 0x7d
	ValF64       ValType = 0x7c
	ValFuncRef   ValType = 0x70
	ValExternRef ValType = 0x6f
)

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValFuncRef:
		return "funcref"
	case ValExternRef:
		return "externref"
	default:
		return fmt.Sprintf("valtype(0x%02x)", byte(v))
	}
}

func validValType(b byte) bool {
	switch ValType(b) {
	case ValI32, ValI64, ValF32, ValF64, ValFuncRef, ValExternRef:
		return true
	default:
		return false
	}
}

// ParseValType maps a textual type name to its binary form.
func ParseValType(s string) (ValType, error) {
	switch s {
	case "i32":
		return ValI32, nil
	case "i64":
		return ValI64, nil
	case "f32":
		return ValF32, nil
	case "f64":
		return ValF64, nil
	case "funcref":
		return ValFuncRef, nil
	case "externref":
		return ValExternRef, nil
	default:
		return 0, errors.WrapInvalidModule(fmt.Sprintf("unknown value type %q", s))
	}
}

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

func (ft FuncType) Equal(other FuncType) bool {
	if len(ft.Params) != len(other.Params) || len(ft.Results) != len(other.Results) {
		return false
	}
	for i := range ft.Params {
		if ft.Params[i] != other.Params[i] {
			return false
		}
	}
	for i := range ft.Results {
		if ft.Results[i] != other.Results[i] {
			return false
		}
	}
	return true
}

func (ft FuncType) String() string {
	params := make([]string, len(ft.Params))
	for i, p := range ft.Params {
		params[i] = p.String()
	}
	results := make([]string, len(ft.Results))
	for i, r := range ft.Results {
		results[i] = r.String()
	}
	return "(" + strings.Join(params, ", ") + ") -> (" + strings.Join(results, ", ") + ")"
}

// GlobalType describes a global's value type and mutability.
type GlobalType struct {
	Type    ValType
	Mutable bool
}

func (gt GlobalType) String() string {
	if gt.Mutable {
		return "mut " + gt.Type.String()
	}
	return gt.Type.String()
}

// GlobalTarget is a resolved redirect destination for an imported global:
// the symbol to import and its declared type. Targets come out of catalog
// resolution, so they are known to exist on the current host surface.
type GlobalTarget struct {
	Ref  SymbolRef
	Type GlobalType
}

// FuncTarget is a resolved redirect destination for an imported function.
type FuncTarget struct {
	Ref  SymbolRef
	Type FuncType
}
