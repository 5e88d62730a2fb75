// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package wasm

import (
	"encoding/binary"
	"fmt"

	"github.com/retreadlabs/retread/internal/errors"
)

// =============================================================================
// Module encoding
// =============================================================================

// Encode serializes the module with sections in canonical order. Custom
// sections come out anchored where they were found. The round trip is
// semantics-preserving, not byte-identical: LEB128 values are re-emitted in
// minimal form.
func (m *Module) Encode() ([]byte, error) {
	out := make([]byte, 0, 1024)
	out = append(out, wasmMagic...)
	out = append(out, 0x01, 0x00, 0x00, 0x00)

	emitSection := func(id byte, payload []byte) {
		out = append(out, id)
		out = append(out, encodeULEB128(uint32(len(payload)))...)
		out = append(out, payload...)
	}

	customsAfter := map[byte][]CustomSection{}
	for _, c := range m.Customs {
		customsAfter[c.after] = append(customsAfter[c.after], c)
	}
	emitCustoms := func(id byte) {
		for _, c := range customsAfter[id] {
			var payload []byte
			payload = append(payload, encodeULEB128(uint32(len(c.Name)))...)
			payload = append(payload, []byte(c.Name)...)
			payload = append(payload, c.Data...)
			emitSection(sectionCustom, payload)
		}
	}

	emitCustoms(sectionCustom)

	if len(m.Types) > 0 {
		var payload []byte
		payload = append(payload, encodeULEB128(uint32(len(m.Types)))...)
		for _, t := range m.Types {
			payload = append(payload, funcTypeMarker)
			payload = append(payload, encodeULEB128(uint32(len(t.Params)))...)
			for _, p := range t.Params {
				payload = append(payload, byte(p))
			}
			payload = append(payload, encodeULEB128(uint32(len(t.Results)))...)
			for _, r := range t.Results {
				payload = append(payload, byte(r))
			}
		}
		emitSection(sectionType, payload)
	}
	emitCustoms(sectionType)

	if len(m.Imports) > 0 {
		var payload []byte
		payload = append(payload, encodeULEB128(uint32(len(m.Imports)))...)
		for _, imp := range m.Imports {
			payload = append(payload, encodeULEB128(uint32(len(imp.Ref.Module)))...)
			payload = append(payload, []byte(imp.Ref.Module)...)
			payload = append(payload, encodeULEB128(uint32(len(imp.Ref.Name)))...)
			payload = append(payload, []byte(imp.Ref.Name)...)
			payload = append(payload, byte(imp.Kind))
			switch imp.Kind {
			case KindFunc:
				payload = append(payload, encodeULEB128(imp.TypeIndex)...)
			case KindGlobal:
				payload = append(payload, byte(imp.Global.Type), mutabilityByte(imp.Global.Mutable))
			default:
				payload = append(payload, imp.Descriptor...)
			}
		}
		emitSection(sectionImport, payload)
	}
	emitCustoms(sectionImport)

	if len(m.Funcs) > 0 {
		var payload []byte
		payload = append(payload, encodeULEB128(uint32(len(m.Funcs)))...)
		for _, fn := range m.Funcs {
			payload = append(payload, encodeULEB128(fn.TypeIndex)...)
		}
		emitSection(sectionFunction, payload)
	}
	emitCustoms(sectionFunction)

	if m.TableSection != nil {
		emitSection(sectionTable, m.TableSection)
	}
	emitCustoms(sectionTable)

	if m.MemorySection != nil {
		emitSection(sectionMemory, m.MemorySection)
	}
	emitCustoms(sectionMemory)

	if len(m.Globals) > 0 {
		var payload []byte
		payload = append(payload, encodeULEB128(uint32(len(m.Globals)))...)
		for _, g := range m.Globals {
			payload = append(payload, byte(g.Type.Type), mutabilityByte(g.Type.Mutable))
			var err error
			payload, err = appendInstructions(payload, g.Init)
			if err != nil {
				return nil, err
			}
		}
		emitSection(sectionGlobal, payload)
	}
	emitCustoms(sectionGlobal)

	if len(m.Exports) > 0 {
		var payload []byte
		payload = append(payload, encodeULEB128(uint32(len(m.Exports)))...)
		for _, exp := range m.Exports {
			payload = append(payload, encodeULEB128(uint32(len(exp.Name)))...)
			payload = append(payload, []byte(exp.Name)...)
			payload = append(payload, byte(exp.Kind))
			payload = append(payload, encodeULEB128(exp.Index)...)
		}
		emitSection(sectionExport, payload)
	}
	emitCustoms(sectionExport)

	if m.Start != nil {
		emitSection(sectionStart, encodeULEB128(*m.Start))
	}
	emitCustoms(sectionStart)

	if len(m.Elems) > 0 {
		var payload []byte
		payload = append(payload, encodeULEB128(uint32(len(m.Elems)))...)
		for _, elem := range m.Elems {
			payload = append(payload, encodeULEB128(elem.TableIndex)...)
			payload = append(payload, elem.OffsetExpr...)
			payload = append(payload, encodeULEB128(uint32(len(elem.FuncIndexes)))...)
			for _, idx := range elem.FuncIndexes {
				payload = append(payload, encodeULEB128(idx)...)
			}
		}
		emitSection(sectionElement, payload)
	}
	emitCustoms(sectionElement)

	if m.DataCountSection != nil {
		emitSection(sectionDataCount, m.DataCountSection)
	}
	emitCustoms(sectionDataCount)

	if len(m.Funcs) > 0 {
		var payload []byte
		payload = append(payload, encodeULEB128(uint32(len(m.Funcs)))...)
		for _, fn := range m.Funcs {
			var body []byte
			body = append(body, encodeULEB128(uint32(len(fn.Locals)))...)
			for _, decl := range fn.Locals {
				body = append(body, encodeULEB128(decl.Count)...)
				body = append(body, byte(decl.Type))
			}
			var err error
			body, err = appendInstructions(body, fn.Body)
			if err != nil {
				return nil, err
			}
			payload = append(payload, encodeULEB128(uint32(len(body)))...)
			payload = append(payload, body...)
		}
		emitSection(sectionCode, payload)
	}
	emitCustoms(sectionCode)

	if m.DataSection != nil {
		emitSection(sectionData, m.DataSection)
	}
	emitCustoms(sectionData)

	return out, nil
}

func mutabilityByte(mutable bool) byte {
	if mutable {
		return 1
	}
	return 0
}

func appendInstructions(out []byte, insts []Instruction) ([]byte, error) {
	var err error
	for _, inst := range insts {
		out, err = appendInstruction(out, inst)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// =============================================================================
// Instruction encoding
// =============================================================================

func appendInstruction(out []byte, inst Instruction) ([]byte, error) {
	op := inst.Op
	if op > 0xff {
		if byte(op>>8) != miscPrefix {
			return nil, errors.WrapUnsupported(fmt.Sprintf("opcode %s", op))
		}
		out = append(out, miscPrefix)
		out = append(out, encodeULEB128(uint32(op&0xff))...)
	} else {
		out = append(out, byte(op))
	}

	badOperand := func() ([]byte, error) {
		return nil, errors.WrapInvalidModule(
			fmt.Sprintf("instruction %s has operand %T", op, inst.Operand))
	}

	switch operandClassOf(op) {
	case classNone:
		if inst.Operand != nil {
			return badOperand()
		}
	case classBlockType:
		o, ok := inst.Operand.(BlockTypeOperand)
		if !ok {
			return badOperand()
		}
		switch {
		case o.Empty:
			out = append(out, 0x40)
		case o.TypeIndex >= 0:
			out = append(out, encodeSLEB128_64(int64(o.TypeIndex))...)
		default:
			out = append(out, byte(o.ValType))
		}
	case classLabel:
		o, ok := inst.Operand.(LabelOperand)
		if !ok {
			return badOperand()
		}
		out = append(out, encodeULEB128(o.Depth)...)
	case classBrTable:
		o, ok := inst.Operand.(BrTableOperand)
		if !ok {
			return badOperand()
		}
		out = append(out, encodeULEB128(uint32(len(o.Targets)))...)
		for _, t := range o.Targets {
			out = append(out, encodeULEB128(t)...)
		}
		out = append(out, encodeULEB128(o.Default)...)
	case classFunc:
		o, ok := inst.Operand.(FuncOperand)
		if !ok {
			return badOperand()
		}
		out = append(out, encodeULEB128(o.Index)...)
	case classCallIndirect:
		o, ok := inst.Operand.(CallIndirectOperand)
		if !ok {
			return badOperand()
		}
		out = append(out, encodeULEB128(o.TypeIndex)...)
		out = append(out, encodeULEB128(o.TableIndex)...)
	case classLocal:
		o, ok := inst.Operand.(LocalOperand)
		if !ok {
			return badOperand()
		}
		out = append(out, encodeULEB128(o.Index)...)
	case classGlobal:
		o, ok := inst.Operand.(GlobalOperand)
		if !ok {
			return badOperand()
		}
		out = append(out, encodeULEB128(o.Index)...)
	case classMemArg:
		o, ok := inst.Operand.(MemArgOperand)
		if !ok {
			return badOperand()
		}
		out = append(out, encodeULEB128(o.Align)...)
		out = append(out, encodeULEB128(o.Offset)...)
	case classIndex:
		o, ok := inst.Operand.(IndexOperand)
		if !ok {
			return badOperand()
		}
		out = append(out, encodeULEB128(o.Index)...)
	case classPair:
		o, ok := inst.Operand.(PairOperand)
		if !ok {
			return badOperand()
		}
		out = append(out, encodeULEB128(o.First)...)
		out = append(out, encodeULEB128(o.Second)...)
	case classI32:
		o, ok := inst.Operand.(I32Operand)
		if !ok {
			return badOperand()
		}
		out = append(out, encodeSLEB128(o.Value)...)
	case classI64:
		o, ok := inst.Operand.(I64Operand)
		if !ok {
			return badOperand()
		}
		out = append(out, encodeSLEB128_64(o.Value)...)
	case classF32:
		o, ok := inst.Operand.(F32Operand)
		if !ok {
			return badOperand()
		}
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], o.Bits)
		out = append(out, b[:]...)
	case classF64:
		o, ok := inst.Operand.(F64Operand)
		if !ok {
			return badOperand()
		}
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], o.Bits)
		out = append(out, b[:]...)
	case classRefType:
		o, ok := inst.Operand.(RefTypeOperand)
		if !ok {
			return badOperand()
		}
		out = append(out, byte(o.Type))
	case classSelectT:
		o, ok := inst.Operand.(SelectTypesOperand)
		if !ok {
			return badOperand()
		}
		out = append(out, encodeULEB128(uint32(len(o.Types)))...)
		for _, t := range o.Types {
			out = append(out, byte(t))
		}
	default:
		return nil, errors.WrapUnsupported(fmt.Sprintf("opcode %s", op))
	}
	return out, nil
}
