// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package wasm

// =============================================================================
// Test WASM module builder
// =============================================================================

// testModuleBuilder constructs synthetic WASM binaries for testing.
type testModuleBuilder struct {
	types    [][]byte // raw type entries
	imports  [][]byte // raw import entries
	funcIdxs []uint32 // type indices for local functions
	bodies   [][]byte // function bodies (local decls + code + end)
	globals  [][]byte // raw global entries
	exports  [][]byte // raw export entries
	start    *uint32
	elements [][]byte // raw element segment entries
	custom   [][]byte // raw custom section payloads (each preceded by name)
	tables   []byte   // raw table section payload
	memories []byte   // raw memory section payload
	data     []byte   // raw data section payload
}

func newTestModule() *testModuleBuilder {
	return &testModuleBuilder{}
}

// addType adds a function type with the given params and results.
func (b *testModuleBuilder) addType(params, results []ValType) *testModuleBuilder {
	entry := []byte{funcTypeMarker}
	entry = append(entry, encodeULEB128(uint32(len(params)))...)
	for _, p := range params {
		entry = append(entry, byte(p))
	}
	entry = append(entry, encodeULEB128(uint32(len(results)))...)
	for _, r := range results {
		entry = append(entry, byte(r))
	}
	b.types = append(b.types, entry)
	return b
}

// addFuncType adds a () -> () function type.
func (b *testModuleBuilder) addFuncType() *testModuleBuilder {
	return b.addType(nil, nil)
}

// addFuncImport adds a function import.
func (b *testModuleBuilder) addFuncImport(module, name string, typeIdx uint32) *testModuleBuilder {
	entry := importPrefix(module, name, byte(KindFunc))
	entry = append(entry, encodeULEB128(typeIdx)...)
	b.imports = append(b.imports, entry)
	return b
}

// addGlobalImport adds a global import.
func (b *testModuleBuilder) addGlobalImport(module, name string, vt ValType, mutable bool) *testModuleBuilder {
	entry := importPrefix(module, name, byte(KindGlobal))
	entry = append(entry, byte(vt), mutabilityByte(mutable))
	b.imports = append(b.imports, entry)
	return b
}

func importPrefix(module, name string, kind byte) []byte {
	var entry []byte
	entry = append(entry, encodeULEB128(uint32(len(module)))...)
	entry = append(entry, []byte(module)...)
	entry = append(entry, encodeULEB128(uint32(len(name)))...)
	entry = append(entry, []byte(name)...)
	entry = append(entry, kind)
	return entry
}

// addFunction adds a local function with the given body instructions.
// The body should NOT include local declarations or end byte.
func (b *testModuleBuilder) addFunction(typeIdx uint32, bodyInstructions []byte) *testModuleBuilder {
	b.funcIdxs = append(b.funcIdxs, typeIdx)
	body := []byte{0x00} // 0 local declarations
	body = append(body, bodyInstructions...)
	body = append(body, 0x0b) // end
	b.bodies = append(b.bodies, body)
	return b
}

// addGlobal adds a locally defined global. The init expression should NOT
// include the end byte.
func (b *testModuleBuilder) addGlobal(vt ValType, mutable bool, init []byte) *testModuleBuilder {
	entry := []byte{byte(vt), mutabilityByte(mutable)}
	entry = append(entry, init...)
	entry = append(entry, 0x0b)
	b.globals = append(b.globals, entry)
	return b
}

// addExport adds an export of the given kind.
func (b *testModuleBuilder) addExport(name string, kind ImportKind, idx uint32) *testModuleBuilder {
	var entry []byte
	entry = append(entry, encodeULEB128(uint32(len(name)))...)
	entry = append(entry, []byte(name)...)
	entry = append(entry, byte(kind))
	entry = append(entry, encodeULEB128(idx)...)
	b.exports = append(b.exports, entry)
	return b
}

// setStart sets the start function index.
func (b *testModuleBuilder) setStart(funcIdx uint32) *testModuleBuilder {
	b.start = &funcIdx
	return b
}

// addElementSegment adds an element segment with function indices.
func (b *testModuleBuilder) addElementSegment(funcIdxs []uint32) *testModuleBuilder {
	var entry []byte
	// table index 0
	entry = append(entry, encodeULEB128(0)...)
	// offset expr: i32.const 0, end
	entry = append(entry, 0x41, 0x00, 0x0b)
	entry = append(entry, encodeULEB128(uint32(len(funcIdxs)))...)
	for _, idx := range funcIdxs {
		entry = append(entry, encodeULEB128(idx)...)
	}
	b.elements = append(b.elements, entry)
	return b
}

// addCustomSection adds a custom section with the given name and payload.
func (b *testModuleBuilder) addCustomSection(name string, payload []byte) *testModuleBuilder {
	var sec []byte
	sec = append(sec, encodeULEB128(uint32(len(name)))...)
	sec = append(sec, []byte(name)...)
	sec = append(sec, payload...)
	b.custom = append(b.custom, sec)
	return b
}

// addABIVersion records the plugin-abi custom section.
func (b *testModuleBuilder) addABIVersion(version string) *testModuleBuilder {
	return b.addCustomSection(ABISectionName, []byte(version))
}

// addTable adds a table section.
func (b *testModuleBuilder) addTable() *testModuleBuilder {
	// 1 table, funcref (0x70), limits: min=0, no max
	b.tables = []byte{0x01, 0x70, 0x00, 0x00}
	return b
}

// addMemory adds a memory section.
func (b *testModuleBuilder) addMemory() *testModuleBuilder {
	// 1 memory, limits: min=1, no max
	b.memories = []byte{0x01, 0x00, 0x01}
	return b
}

// addData adds a data section with a single active segment.
func (b *testModuleBuilder) addData(bytes []byte) *testModuleBuilder {
	// 1 segment, memory 0, offset i32.const 0, payload
	payload := []byte{0x01, 0x00, 0x41, 0x00, 0x0b}
	payload = append(payload, encodeULEB128(uint32(len(bytes)))...)
	payload = append(payload, bytes...)
	b.data = payload
	return b
}

// build constructs the final WASM binary.
func (b *testModuleBuilder) build() []byte {
	out := make([]byte, 0, 256)
	out = append(out, wasmMagic...)
	out = append(out, 0x01, 0x00, 0x00, 0x00)

	emitSection := func(id byte, payload []byte) {
		out = append(out, id)
		out = append(out, encodeULEB128(uint32(len(payload)))...)
		out = append(out, payload...)
	}

	emitVec := func(id byte, entries [][]byte) {
		if len(entries) == 0 {
			return
		}
		var payload []byte
		payload = append(payload, encodeULEB128(uint32(len(entries)))...)
		for _, e := range entries {
			payload = append(payload, e...)
		}
		emitSection(id, payload)
	}

	emitVec(sectionType, b.types)
	emitVec(sectionImport, b.imports)

	if len(b.funcIdxs) > 0 {
		var payload []byte
		payload = append(payload, encodeULEB128(uint32(len(b.funcIdxs)))...)
		for _, idx := range b.funcIdxs {
			payload = append(payload, encodeULEB128(idx)...)
		}
		emitSection(sectionFunction, payload)
	}

	if b.tables != nil {
		emitSection(sectionTable, b.tables)
	}
	if b.memories != nil {
		emitSection(sectionMemory, b.memories)
	}

	emitVec(sectionGlobal, b.globals)
	emitVec(sectionExport, b.exports)

	if b.start != nil {
		emitSection(sectionStart, encodeULEB128(*b.start))
	}

	emitVec(sectionElement, b.elements)

	if len(b.bodies) > 0 {
		var payload []byte
		payload = append(payload, encodeULEB128(uint32(len(b.bodies)))...)
		for _, body := range b.bodies {
			payload = append(payload, encodeULEB128(uint32(len(body)))...)
			payload = append(payload, body...)
		}
		emitSection(sectionCode, payload)
	}

	if b.data != nil {
		emitSection(sectionData, b.data)
	}

	for _, sec := range b.custom {
		emitSection(sectionCustom, sec)
	}

	return out
}
