// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package wasm

import "fmt"

// Instruction is one decoded instruction. Operand is nil for instructions
// without immediates; otherwise it holds exactly one of the variants below,
// matching the opcode's immediate shape.
type Instruction struct {
	Op      Opcode
	Operand Operand
}

func (i Instruction) String() string {
	if i.Operand == nil {
		return i.Op.String()
	}
	return i.Op.String() + " " + i.Operand.String()
}

// Operand is the closed set of instruction immediate shapes. The marker
// method keeps the set closed to this package.
type Operand interface {
	isOperand()
	String() string
}

// BlockTypeOperand is the immediate of block, loop, and if. Exactly one
// form applies: the empty type, a single value type, or an index into the
// type section for multi-value signatures.
type BlockTypeOperand struct {
	Empty     bool
	ValType   ValType
	TypeIndex int32 // valid when >= 0; -1 otherwise
}

func (BlockTypeOperand) isOperand() {}

func (o BlockTypeOperand) String() string {
	switch {
	case o.Empty:
		return ""
	case o.TypeIndex >= 0:
		return fmt.Sprintf("(type %d)", o.TypeIndex)
	default:
		return "(result " + o.ValType.String() + ")"
	}
}

// LabelOperand is a relative branch depth (br, br_if).
type LabelOperand struct {
	Depth uint32
}

func (LabelOperand) isOperand() {}

func (o LabelOperand) String() string { return fmt.Sprintf("%d", o.Depth) }

// BrTableOperand is the br_table jump table.
type BrTableOperand struct {
	Targets []uint32
	Default uint32
}

func (BrTableOperand) isOperand() {}

func (o BrTableOperand) String() string {
	return fmt.Sprintf("%v %d", o.Targets, o.Default)
}

// FuncOperand is a function index (call, return_call, ref.func). Indices
// below the module's imported-function count are symbolic references.
type FuncOperand struct {
	Index uint32
}

func (FuncOperand) isOperand() {}

func (o FuncOperand) String() string { return fmt.Sprintf("%d", o.Index) }

// CallIndirectOperand is the call_indirect immediate pair.
type CallIndirectOperand struct {
	TypeIndex  uint32
	TableIndex uint32
}

func (CallIndirectOperand) isOperand() {}

func (o CallIndirectOperand) String() string {
	return fmt.Sprintf("(type %d) (table %d)", o.TypeIndex, o.TableIndex)
}

// LocalOperand is a local index (local.get/set/tee).
type LocalOperand struct {
	Index uint32
}

func (LocalOperand) isOperand() {}

func (o LocalOperand) String() string { return fmt.Sprintf("%d", o.Index) }

// GlobalOperand is a global index (global.get/set). Indices below the
// module's imported-global count are symbolic references.
type GlobalOperand struct {
	Index uint32
}

func (GlobalOperand) isOperand() {}

func (o GlobalOperand) String() string { return fmt.Sprintf("%d", o.Index) }

// MemArgOperand is the alignment/offset immediate pair of loads and stores.
type MemArgOperand struct {
	Align  uint32
	Offset uint32
}

func (MemArgOperand) isOperand() {}

func (o MemArgOperand) String() string {
	return fmt.Sprintf("align=%d offset=%d", o.Align, o.Offset)
}

// IndexOperand is a single index immediate whose meaning depends on the
// opcode (memory, table, data, or element index).
type IndexOperand struct {
	Index uint32
}

func (IndexOperand) isOperand() {}

func (o IndexOperand) String() string { return fmt.Sprintf("%d", o.Index) }

// PairOperand is a two-index immediate (memory.init, memory.copy,
// table.init, table.copy).
type PairOperand struct {
	First  uint32
	Second uint32
}

func (PairOperand) isOperand() {}

func (o PairOperand) String() string { return fmt.Sprintf("%d %d", o.First, o.Second) }

// I32Operand is an i32.const immediate.
type I32Operand struct {
	Value int32
}

func (I32Operand) isOperand() {}

func (o I32Operand) String() string { return fmt.Sprintf("%d", o.Value) }

// I64Operand is an i64.const immediate.
type I64Operand struct {
	Value int64
}

func (I64Operand) isOperand() {}

func (o I64Operand) String() string { return fmt.Sprintf("%d", o.Value) }

// F32Operand holds the raw bit pattern of an f32.const immediate so NaN
// payloads survive the round trip.
type F32Operand struct {
	Bits uint32
}

func (F32Operand) isOperand() {}

func (o F32Operand) String() string { return fmt.Sprintf("0x%08x", o.Bits) }

// F64Operand holds the raw bit pattern of an f64.const immediate.
type F64Operand struct {
	Bits uint64
}

func (F64Operand) isOperand() {}

func (o F64Operand) String() string { return fmt.Sprintf("0x%016x", o.Bits) }

// RefTypeOperand is the ref.null heap type immediate.
type RefTypeOperand struct {
	Type ValType
}

func (RefTypeOperand) isOperand() {}

func (o RefTypeOperand) String() string { return o.Type.String() }

// SelectTypesOperand is the typed select immediate.
type SelectTypesOperand struct {
	Types []ValType
}

func (SelectTypesOperand) isOperand() {}

func (o SelectTypesOperand) String() string {
	parts := make([]string, len(o.Types))
	for i, t := range o.Types {
		parts[i] = t.String()
	}
	return fmt.Sprintf("%v", parts)
}
