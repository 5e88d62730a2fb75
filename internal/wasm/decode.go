// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package wasm

import (
	"encoding/binary"
	"fmt"

	"github.com/retreadlabs/retread/internal/errors"
)

// =============================================================================
// WASM constants
// =============================================================================

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

const wasmVersion = 1

const (
	sectionCustom    byte = 0
	sectionType      byte = 1
	sectionImport    byte = 2
	sectionFunction  byte = 3
	sectionTable     byte = 4
	sectionMemory    byte = 5
	sectionGlobal    byte = 6
	sectionExport    byte = 7
	sectionStart     byte = 8
	sectionElement   byte = 9
	sectionCode      byte = 10
	sectionData      byte = 11
	sectionDataCount byte = 12
)

const funcTypeMarker byte = 0x60

// =============================================================================
// Cursor
// =============================================================================

// reader is a bounds-checked cursor over module bytes. base carries the
// cursor's absolute position within the file so errors name real offsets
// even when reading a section slice.
type reader struct {
	data []byte
	pos  int
	base int
}

func (r *reader) fail(msg string) error {
	return errors.WrapInvalidModuleAt(r.base+r.pos, msg)
}

func (r *reader) len() int { return len(r.data) - r.pos }

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, r.fail("unexpected end of input")
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, r.fail("unexpected end of input")
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) u32() (uint32, error) {
	v, n := decodeULEB128(r.data[r.pos:])
	if n == 0 {
		return 0, r.fail("bad uleb128")
	}
	r.pos += n
	return v, nil
}

func (r *reader) s32() (int32, error) {
	v, n := decodeSLEB128(r.data[r.pos:])
	if n == 0 {
		return 0, r.fail("bad sleb128")
	}
	r.pos += n
	return v, nil
}

func (r *reader) s64() (int64, error) {
	v, n := decodeSLEB128_64(r.data[r.pos:])
	if n == 0 {
		return 0, r.fail("bad sleb128")
	}
	r.pos += n
	return v, nil
}

func (r *reader) name() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// vec reads a vector length and rejects counts that cannot fit in the
// remaining bytes, so a corrupt length cannot drive a huge allocation.
func (r *reader) vec() (uint32, error) {
	count, err := r.u32()
	if err != nil {
		return 0, err
	}
	if int64(count) > int64(r.len()) {
		return 0, r.fail("vector length exceeds remaining input")
	}
	return count, nil
}

func (r *reader) valType() (ValType, error) {
	b, err := r.byte()
	if err != nil {
		return 0, err
	}
	if !validValType(b) {
		return 0, r.fail(fmt.Sprintf("bad value type 0x%02x", b))
	}
	return ValType(b), nil
}

// =============================================================================
// Module decoding
// =============================================================================

// Decode parses a binary module, decoding every function body to
// instructions. Input bytes are copied where retained; the caller's buffer
// is not aliased.
func Decode(b []byte) (*Module, error) {
	if len(b) < 8 {
		return nil, errors.WrapInvalidModule("file too short")
	}
	for i := 0; i < 4; i++ {
		if b[i] != wasmMagic[i] {
			return nil, errors.WrapInvalidModule("bad magic bytes")
		}
	}
	if v := binary.LittleEndian.Uint32(b[4:8]); v != wasmVersion {
		return nil, errors.WrapInvalidModule(fmt.Sprintf("unsupported version %d", v))
	}

	mod := &Module{}
	r := &reader{data: b, pos: 8}

	// Type indices from the function section, paired with code bodies at
	// the end.
	var funcTypeIndexes []uint32
	lastSection := sectionCustom

	for r.len() > 0 {
		secID, err := r.byte()
		if err != nil {
			return nil, err
		}
		secSize, err := r.u32()
		if err != nil {
			return nil, err
		}
		payload, err := r.bytes(int(secSize))
		if err != nil {
			return nil, errors.WrapInvalidModule("section extends past end of file")
		}
		sec := &reader{data: payload, base: r.base + r.pos - len(payload)}

		switch secID {
		case sectionCustom:
			name, err := sec.name()
			if err != nil {
				return nil, err
			}
			data := make([]byte, sec.len())
			copy(data, payload[sec.pos:])
			mod.Customs = append(mod.Customs, CustomSection{
				Name:  name,
				Data:  data,
				after: lastSection,
			})
			continue
		case sectionType:
			if err := decodeTypeSection(sec, mod); err != nil {
				return nil, err
			}
		case sectionImport:
			if err := decodeImportSection(sec, mod); err != nil {
				return nil, err
			}
		case sectionFunction:
			funcTypeIndexes, err = decodeFunctionSection(sec)
			if err != nil {
				return nil, err
			}
		case sectionTable:
			mod.TableSection = copyBytes(payload)
		case sectionMemory:
			mod.MemorySection = copyBytes(payload)
		case sectionGlobal:
			if err := decodeGlobalSection(sec, mod); err != nil {
				return nil, err
			}
		case sectionExport:
			if err := decodeExportSection(sec, mod); err != nil {
				return nil, err
			}
		case sectionStart:
			idx, err := sec.u32()
			if err != nil {
				return nil, err
			}
			mod.Start = &idx
		case sectionElement:
			if err := decodeElementSection(sec, mod); err != nil {
				return nil, err
			}
		case sectionDataCount:
			mod.DataCountSection = copyBytes(payload)
		case sectionCode:
			if err := decodeCodeSection(sec, mod, funcTypeIndexes); err != nil {
				return nil, err
			}
		case sectionData:
			mod.DataSection = copyBytes(payload)
		default:
			return nil, errors.WrapInvalidModule(fmt.Sprintf("unknown section id %d", secID))
		}
		lastSection = secID
	}

	if len(funcTypeIndexes) > 0 && len(mod.Funcs) == 0 {
		return nil, errors.WrapInvalidModule("function section without code section")
	}

	return mod, nil
}

func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func decodeTypeSection(r *reader, mod *Module) error {
	count, err := r.vec()
	if err != nil {
		return err
	}
	mod.Types = make([]FuncType, 0, count)
	for i := uint32(0); i < count; i++ {
		marker, err := r.byte()
		if err != nil {
			return err
		}
		if marker != funcTypeMarker {
			return r.fail(fmt.Sprintf("bad functype marker 0x%02x", marker))
		}
		ft := FuncType{}
		paramCount, err := r.u32()
		if err != nil {
			return err
		}
		for j := uint32(0); j < paramCount; j++ {
			vt, err := r.valType()
			if err != nil {
				return err
			}
			ft.Params = append(ft.Params, vt)
		}
		resultCount, err := r.u32()
		if err != nil {
			return err
		}
		for j := uint32(0); j < resultCount; j++ {
			vt, err := r.valType()
			if err != nil {
				return err
			}
			ft.Results = append(ft.Results, vt)
		}
		mod.Types = append(mod.Types, ft)
	}
	return nil
}

func decodeImportSection(r *reader, mod *Module) error {
	count, err := r.vec()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		modName, err := r.name()
		if err != nil {
			return err
		}
		name, err := r.name()
		if err != nil {
			return err
		}
		kind, err := r.byte()
		if err != nil {
			return err
		}

		entry := Import{
			Ref:  SymbolRef{Module: modName, Name: name},
			Kind: ImportKind(kind),
		}
		switch ImportKind(kind) {
		case KindFunc:
			entry.TypeIndex, err = r.u32()
			if err != nil {
				return err
			}
		case KindGlobal:
			vt, err := r.valType()
			if err != nil {
				return err
			}
			mut, err := r.byte()
			if err != nil {
				return err
			}
			if mut > 1 {
				return r.fail("bad mutability flag")
			}
			entry.Global = GlobalType{Type: vt, Mutable: mut == 1}
		case KindTable, KindMemory:
			desc, err := readImportDescriptor(r, ImportKind(kind))
			if err != nil {
				return err
			}
			entry.Descriptor = desc
		default:
			return r.fail(fmt.Sprintf("bad import kind %d", kind))
		}
		mod.Imports = append(mod.Imports, entry)
	}
	return nil
}

// readImportDescriptor captures the raw descriptor bytes of a table or
// memory import.
func readImportDescriptor(r *reader, kind ImportKind) ([]byte, error) {
	start := r.pos
	if kind == KindTable {
		if _, err := r.byte(); err != nil { // elem type
			return nil, err
		}
	}
	flag, err := r.byte()
	if err != nil {
		return nil, err
	}
	if flag > 1 {
		return nil, r.fail("bad limits flag")
	}
	if _, err := r.u32(); err != nil { // min
		return nil, err
	}
	if flag == 1 {
		if _, err := r.u32(); err != nil { // max
			return nil, err
		}
	}
	return copyBytes(r.data[start:r.pos]), nil
}

func decodeFunctionSection(r *reader) ([]uint32, error) {
	count, err := r.vec()
	if err != nil {
		return nil, err
	}
	indexes := make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		idx, err := r.u32()
		if err != nil {
			return nil, err
		}
		indexes = append(indexes, idx)
	}
	return indexes, nil
}

func decodeGlobalSection(r *reader, mod *Module) error {
	count, err := r.vec()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		vt, err := r.valType()
		if err != nil {
			return err
		}
		mut, err := r.byte()
		if err != nil {
			return err
		}
		if mut > 1 {
			return r.fail("bad mutability flag")
		}
		init, err := decodeExpr(r)
		if err != nil {
			return err
		}
		mod.Globals = append(mod.Globals, Global{
			Type: GlobalType{Type: vt, Mutable: mut == 1},
			Init: init,
		})
	}
	return nil
}

func decodeExportSection(r *reader, mod *Module) error {
	count, err := r.vec()
	if err != nil {
		return err
	}
	mod.Exports = make([]Export, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := r.name()
		if err != nil {
			return err
		}
		kind, err := r.byte()
		if err != nil {
			return err
		}
		if kind > byte(KindGlobal) {
			return r.fail(fmt.Sprintf("bad export kind %d", kind))
		}
		idx, err := r.u32()
		if err != nil {
			return err
		}
		mod.Exports = append(mod.Exports, Export{
			Name:  name,
			Kind:  ImportKind(kind),
			Index: idx,
		})
	}
	return nil
}

func decodeElementSection(r *reader, mod *Module) error {
	count, err := r.vec()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		tableIdx, err := r.u32()
		if err != nil {
			return err
		}
		if tableIdx != 0 {
			return r.fail(fmt.Sprintf("unsupported element segment form %d", tableIdx))
		}

		// The offset is a constant expression; decode it properly so a
		// 0x0b byte inside a const operand cannot be mistaken for end.
		exprStart := r.pos
		if _, err := decodeExpr(r); err != nil {
			return err
		}
		offsetExpr := copyBytes(r.data[exprStart:r.pos])

		funcCount, err := r.vec()
		if err != nil {
			return err
		}
		idxs := make([]uint32, funcCount)
		for j := uint32(0); j < funcCount; j++ {
			idxs[j], err = r.u32()
			if err != nil {
				return err
			}
		}
		mod.Elems = append(mod.Elems, ElemSegment{
			TableIndex:  tableIdx,
			OffsetExpr:  offsetExpr,
			FuncIndexes: idxs,
		})
	}
	return nil
}

func decodeCodeSection(r *reader, mod *Module, typeIndexes []uint32) error {
	count, err := r.vec()
	if err != nil {
		return err
	}
	if int(count) != len(typeIndexes) {
		return r.fail("function and code section counts differ")
	}
	mod.Funcs = make([]Function, 0, count)
	for i := uint32(0); i < count; i++ {
		bodySize, err := r.u32()
		if err != nil {
			return err
		}
		bodyBytes, err := r.bytes(int(bodySize))
		if err != nil {
			return errors.WrapInvalidModule("code body extends past section")
		}
		body := &reader{data: bodyBytes, base: r.base + r.pos - len(bodyBytes)}

		fn := Function{TypeIndex: typeIndexes[i]}
		declCount, err := body.u32()
		if err != nil {
			return err
		}
		for j := uint32(0); j < declCount; j++ {
			n, err := body.u32()
			if err != nil {
				return err
			}
			vt, err := body.valType()
			if err != nil {
				return err
			}
			fn.Locals = append(fn.Locals, LocalDecl{Count: n, Type: vt})
		}
		for body.len() > 0 {
			inst, err := decodeInstruction(body)
			if err != nil {
				return err
			}
			fn.Body = append(fn.Body, inst)
		}
		if n := len(fn.Body); n == 0 || fn.Body[n-1].Op != OpEnd {
			return body.fail("function body not terminated")
		}
		mod.Funcs = append(mod.Funcs, fn)
	}
	return nil
}

// decodeExpr decodes a constant expression: instructions up to and
// including the terminating end at nesting depth zero.
func decodeExpr(r *reader) ([]Instruction, error) {
	var out []Instruction
	depth := 0
	for {
		inst, err := decodeInstruction(r)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
		switch inst.Op {
		case OpBlock, OpLoop, OpIf:
			depth++
		case OpEnd:
			if depth == 0 {
				return out, nil
			}
			depth--
		}
	}
}

// =============================================================================
// Instruction decoding
// =============================================================================

func decodeInstruction(r *reader) (Instruction, error) {
	at := r.pos
	b, err := r.byte()
	if err != nil {
		return Instruction{}, err
	}

	op := Opcode(b)
	if b == miscPrefix {
		sub, err := r.u32()
		if err != nil {
			return Instruction{}, err
		}
		if sub > 0xff {
			return Instruction{}, errors.WrapUnsupported(fmt.Sprintf("0xfc subopcode %d", sub))
		}
		op = Opcode(0xfc00 | sub)
	} else if b == 0xfd || b == 0xfe {
		return Instruction{}, errors.WrapUnsupported(fmt.Sprintf("opcode prefix 0x%02x at offset 0x%x", b, r.base+at))
	}

	inst := Instruction{Op: op}
	switch operandClassOf(op) {
	case classNone:
		return inst, nil
	case classBlockType:
		bt, err := decodeBlockType(r)
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand = bt
	case classLabel:
		depth, err := r.u32()
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand = LabelOperand{Depth: depth}
	case classBrTable:
		count, err := r.vec()
		if err != nil {
			return Instruction{}, err
		}
		targets := make([]uint32, count)
		for i := range targets {
			if targets[i], err = r.u32(); err != nil {
				return Instruction{}, err
			}
		}
		def, err := r.u32()
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand = BrTableOperand{Targets: targets, Default: def}
	case classFunc:
		idx, err := r.u32()
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand = FuncOperand{Index: idx}
	case classCallIndirect:
		typeIdx, err := r.u32()
		if err != nil {
			return Instruction{}, err
		}
		tableIdx, err := r.u32()
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand = CallIndirectOperand{TypeIndex: typeIdx, TableIndex: tableIdx}
	case classLocal:
		idx, err := r.u32()
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand = LocalOperand{Index: idx}
	case classGlobal:
		idx, err := r.u32()
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand = GlobalOperand{Index: idx}
	case classMemArg:
		align, err := r.u32()
		if err != nil {
			return Instruction{}, err
		}
		offset, err := r.u32()
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand = MemArgOperand{Align: align, Offset: offset}
	case classIndex:
		idx, err := r.u32()
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand = IndexOperand{Index: idx}
	case classPair:
		first, err := r.u32()
		if err != nil {
			return Instruction{}, err
		}
		second, err := r.u32()
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand = PairOperand{First: first, Second: second}
	case classI32:
		v, err := r.s32()
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand = I32Operand{Value: v}
	case classI64:
		v, err := r.s64()
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand = I64Operand{Value: v}
	case classF32:
		b4, err := r.bytes(4)
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand = F32Operand{Bits: binary.LittleEndian.Uint32(b4)}
	case classF64:
		b8, err := r.bytes(8)
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand = F64Operand{Bits: binary.LittleEndian.Uint64(b8)}
	case classRefType:
		vt, err := r.valType()
		if err != nil {
			return Instruction{}, err
		}
		inst.Operand = RefTypeOperand{Type: vt}
	case classSelectT:
		count, err := r.vec()
		if err != nil {
			return Instruction{}, err
		}
		types := make([]ValType, count)
		for i := range types {
			if types[i], err = r.valType(); err != nil {
				return Instruction{}, err
			}
		}
		inst.Operand = SelectTypesOperand{Types: types}
	default:
		return Instruction{}, errors.WrapUnsupported(
			fmt.Sprintf("opcode %s at offset 0x%x", op, r.base+at))
	}
	return inst, nil
}

func decodeBlockType(r *reader) (BlockTypeOperand, error) {
	if r.pos >= len(r.data) {
		return BlockTypeOperand{}, r.fail("unexpected end of input")
	}
	b := r.data[r.pos]
	if b == 0x40 {
		r.pos++
		return BlockTypeOperand{Empty: true, TypeIndex: -1}, nil
	}
	if validValType(b) {
		r.pos++
		return BlockTypeOperand{ValType: ValType(b), TypeIndex: -1}, nil
	}
	idx, err := r.s64()
	if err != nil {
		return BlockTypeOperand{}, err
	}
	if idx < 0 {
		return BlockTypeOperand{}, r.fail("bad block type")
	}
	return BlockTypeOperand{TypeIndex: int32(idx)}, nil
}
