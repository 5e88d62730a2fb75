// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package wasm

// =============================================================================
// Module model
// =============================================================================

// ImportKind is the external kind byte of an import or export entry.
type ImportKind byte

const (
	KindFunc   ImportKind = 0
	KindTable  ImportKind = 1
	KindMemory ImportKind = 2
	KindGlobal ImportKind = 3
)

func (k ImportKind) String() string {
	switch k {
	case KindFunc:
		return "func"
	case KindTable:
		return "table"
	case KindMemory:
		return "memory"
	case KindGlobal:
		return "global"
	default:
		return "kind(?)"
	}
}

// Import is one import-section entry. Function imports carry a type index,
// global imports a GlobalType; table and memory descriptors pass through as
// raw bytes since retread never edits them.
type Import struct {
	Ref        SymbolRef
	Kind       ImportKind
	TypeIndex  uint32
	Global     GlobalType
	Descriptor []byte
}

// Export is one export-section entry.
type Export struct {
	Name  string
	Kind  ImportKind
	Index uint32
}

// Global is a locally defined global with its decoded init expression.
type Global struct {
	Type GlobalType
	Init []Instruction
}

// ElemSegment is one element-section entry. The offset expression passes
// through raw: it may only reference imported globals, whose indices never
// shift under import appends.
type ElemSegment struct {
	TableIndex  uint32
	OffsetExpr  []byte
	FuncIndexes []uint32
}

// LocalDecl is one run of same-typed locals in a function body.
type LocalDecl struct {
	Count uint32
	Type  ValType
}

// Function is one locally defined function with its body decoded to
// instructions, including structural end markers.
type Function struct {
	TypeIndex uint32
	Locals    []LocalDecl
	Body      []Instruction
}

// CustomSection is a named custom section. after records the last known
// section id preceding it so re-encoding keeps its position.
type CustomSection struct {
	Name string
	Data []byte

	after byte
}

// ABISectionName is the custom section carrying the host API version a
// plugin was built against.
const ABISectionName = "plugin-abi"

// Module is a decoded WebAssembly module. Sections retread rewrites are
// fully parsed; table, memory, data, and data-count payloads pass through
// byte-exact.
type Module struct {
	Types   []FuncType
	Imports []Import
	Funcs   []Function
	Globals []Global
	Exports []Export
	Start   *uint32
	Elems   []ElemSegment
	Customs []CustomSection

	TableSection     []byte
	MemorySection    []byte
	DataSection      []byte
	DataCountSection []byte
}

// =============================================================================
// Index spaces
// =============================================================================

// NumImportedFuncs counts function imports; locally defined functions are
// indexed starting at this value.
func (m *Module) NumImportedFuncs() uint32 {
	var n uint32
	for _, imp := range m.Imports {
		if imp.Kind == KindFunc {
			n++
		}
	}
	return n
}

// NumImportedGlobals counts global imports; locally defined globals are
// indexed starting at this value.
func (m *Module) NumImportedGlobals() uint32 {
	var n uint32
	for _, imp := range m.Imports {
		if imp.Kind == KindGlobal {
			n++
		}
	}
	return n
}

// ImportedFuncRef resolves a function index to its symbolic name. The
// second return is false for locally defined functions.
func (m *Module) ImportedFuncRef(idx uint32) (SymbolRef, bool) {
	imp, ok := m.importByOrdinal(KindFunc, idx)
	if !ok {
		return SymbolRef{}, false
	}
	return imp.Ref, true
}

// ImportedGlobalRef resolves a global index to its symbolic name. The
// second return is false for locally defined globals.
func (m *Module) ImportedGlobalRef(idx uint32) (SymbolRef, bool) {
	imp, ok := m.importByOrdinal(KindGlobal, idx)
	if !ok {
		return SymbolRef{}, false
	}
	return imp.Ref, true
}

// FindImportedFunc returns the function index of an existing import with
// the given symbolic name.
func (m *Module) FindImportedFunc(ref SymbolRef) (uint32, bool) {
	var ordinal uint32
	for _, imp := range m.Imports {
		if imp.Kind != KindFunc {
			continue
		}
		if imp.Ref == ref {
			return ordinal, true
		}
		ordinal++
	}
	return 0, false
}

// FindImportedGlobal returns the global index of an existing import with
// the given symbolic name.
func (m *Module) FindImportedGlobal(ref SymbolRef) (uint32, bool) {
	var ordinal uint32
	for _, imp := range m.Imports {
		if imp.Kind != KindGlobal {
			continue
		}
		if imp.Ref == ref {
			return ordinal, true
		}
		ordinal++
	}
	return 0, false
}

func (m *Module) importByOrdinal(kind ImportKind, idx uint32) (*Import, bool) {
	var ordinal uint32
	for i := range m.Imports {
		if m.Imports[i].Kind != kind {
			continue
		}
		if ordinal == idx {
			return &m.Imports[i], true
		}
		ordinal++
	}
	return nil, false
}

// EnsureType returns the index of a type-section entry matching ft,
// appending one when absent.
func (m *Module) EnsureType(ft FuncType) uint32 {
	for i, t := range m.Types {
		if t.Equal(ft) {
			return uint32(i)
		}
	}
	m.Types = append(m.Types, ft)
	return uint32(len(m.Types) - 1)
}

// =============================================================================
// Reference universe
// =============================================================================

// AddImportedGlobal makes the target's symbol part of the module's import
// surface and returns its global index. An existing import with the same
// symbolic name is reused. A new import is appended after all existing
// imports, so previously imported globals keep their indices and only
// locally defined globals shift; every shifted reference in function
// bodies, global init expressions, and exports is renumbered here.
func (m *Module) AddImportedGlobal(t GlobalTarget) uint32 {
	if idx, ok := m.FindImportedGlobal(t.Ref); ok {
		return idx
	}

	idx := m.NumImportedGlobals()
	m.Imports = append(m.Imports, Import{
		Ref:    t.Ref,
		Kind:   KindGlobal,
		Global: t.Type,
	})
	m.shiftGlobalIndices(idx)
	return idx
}

// AddImportedFunc makes the target's symbol part of the module's import
// surface and returns its function index. Same reuse and renumbering
// contract as AddImportedGlobal; the function's signature is interned in
// the type section first.
func (m *Module) AddImportedFunc(t FuncTarget) uint32 {
	if idx, ok := m.FindImportedFunc(t.Ref); ok {
		return idx
	}

	typeIdx := m.EnsureType(t.Type)
	idx := m.NumImportedFuncs()
	m.Imports = append(m.Imports, Import{
		Ref:       t.Ref,
		Kind:      KindFunc,
		TypeIndex: typeIdx,
	})
	m.shiftFuncIndices(idx)
	return idx
}

// shiftGlobalIndices bumps every reference to a locally defined global
// (index >= from before the append) by one.
func (m *Module) shiftGlobalIndices(from uint32) {
	bump := func(insts []Instruction) {
		for i := range insts {
			if op, ok := insts[i].Operand.(GlobalOperand); ok && op.Index >= from {
				insts[i].Operand = GlobalOperand{Index: op.Index + 1}
			}
		}
	}

	for fi := range m.Funcs {
		bump(m.Funcs[fi].Body)
	}
	for gi := range m.Globals {
		bump(m.Globals[gi].Init)
	}
	for ei := range m.Exports {
		if m.Exports[ei].Kind == KindGlobal && m.Exports[ei].Index >= from {
			m.Exports[ei].Index++
		}
	}
}

// shiftFuncIndices bumps every reference to a locally defined function
// (index >= from before the append) by one.
func (m *Module) shiftFuncIndices(from uint32) {
	bump := func(insts []Instruction) {
		for i := range insts {
			if op, ok := insts[i].Operand.(FuncOperand); ok && op.Index >= from {
				insts[i].Operand = FuncOperand{Index: op.Index + 1}
			}
		}
	}

	for fi := range m.Funcs {
		bump(m.Funcs[fi].Body)
	}
	for gi := range m.Globals {
		bump(m.Globals[gi].Init)
	}
	for ei := range m.Exports {
		if m.Exports[ei].Kind == KindFunc && m.Exports[ei].Index >= from {
			m.Exports[ei].Index++
		}
	}
	for si := range m.Elems {
		for fi := range m.Elems[si].FuncIndexes {
			if m.Elems[si].FuncIndexes[fi] >= from {
				m.Elems[si].FuncIndexes[fi]++
			}
		}
	}
	if m.Start != nil && *m.Start >= from {
		next := *m.Start + 1
		m.Start = &next
	}
}

// =============================================================================
// ABI custom section
// =============================================================================

// ABIVersion returns the host API version string recorded at build time,
// if the module carries one.
func (m *Module) ABIVersion() (string, bool) {
	for _, c := range m.Customs {
		if c.Name == ABISectionName {
			return string(c.Data), true
		}
	}
	return "", false
}

// SetABIVersion records or replaces the module's ABI version section.
func (m *Module) SetABIVersion(version string) {
	for i := range m.Customs {
		if m.Customs[i].Name == ABISectionName {
			m.Customs[i].Data = []byte(version)
			return
		}
	}
	m.Customs = append(m.Customs, CustomSection{
		Name:  ABISectionName,
		Data:  []byte(version),
		after: sectionData,
	})
}
