// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

// Package strip implements dead-function elimination over decoded modules.
// It traverses the call graph from exported functions, drops locally defined
// functions nothing reaches, and renumbers every surviving reference.
// Imports are never removed: the host decides what surface it offers.
package strip

import (
	"fmt"

	"github.com/retreadlabs/retread/internal/errors"
	"github.com/retreadlabs/retread/internal/logger"
	"github.com/retreadlabs/retread/internal/wasm"
)

// Stats holds metrics about one elimination pass.
type Stats struct {
	TotalFunctions   int
	RemovedFunctions int
}

// Strip mutates m in place. Roots are exports, the start function, and
// element segment entries; edges are every function reference in a reachable
// body (call, return_call, ref.func).
func Strip(m *wasm.Module) (Stats, error) {
	numImported := m.NumImportedFuncs()
	numFuncs := numImported + uint32(len(m.Funcs))
	stats := Stats{TotalFunctions: int(numFuncs)}

	if err := checkRootsInRange(m, numFuncs); err != nil {
		return Stats{}, err
	}

	reachable := markReachable(m, rootSet(m), numImported)
	reindex, dead := buildReindexMap(m, reachable, numImported)
	if len(dead) == 0 {
		return stats, nil
	}

	sweep(m, reindex, dead)
	stats.RemovedFunctions = len(dead)

	logger.Logger.Debug("stripped dead functions",
		"removed", stats.RemovedFunctions,
		"kept", stats.TotalFunctions-stats.RemovedFunctions)
	return stats, nil
}

func checkRootsInRange(m *wasm.Module, numFuncs uint32) error {
	for _, exp := range m.Exports {
		if exp.Kind == wasm.KindFunc && exp.Index >= numFuncs {
			return errors.WrapInvalidModule(fmt.Sprintf("export %q references function %d of %d", exp.Name, exp.Index, numFuncs))
		}
	}
	if m.Start != nil && *m.Start >= numFuncs {
		return errors.WrapInvalidModule(fmt.Sprintf("start references function %d of %d", *m.Start, numFuncs))
	}
	for si, seg := range m.Elems {
		for _, idx := range seg.FuncIndexes {
			if idx >= numFuncs {
				return errors.WrapInvalidModule(fmt.Sprintf("element segment %d references function %d of %d", si, idx, numFuncs))
			}
		}
	}
	return nil
}

// rootSet returns the function indices that anchor reachability.
func rootSet(m *wasm.Module) map[uint32]bool {
	roots := map[uint32]bool{}
	for _, exp := range m.Exports {
		if exp.Kind == wasm.KindFunc {
			roots[exp.Index] = true
		}
	}
	if m.Start != nil {
		roots[*m.Start] = true
	}
	for _, seg := range m.Elems {
		for _, idx := range seg.FuncIndexes {
			roots[idx] = true
		}
	}
	return roots
}

// markReachable performs BFS from the root set, following every function
// operand in reachable bodies.
func markReachable(m *wasm.Module, roots map[uint32]bool, numImported uint32) map[uint32]bool {
	reachable := map[uint32]bool{}
	worklist := make([]uint32, 0, len(roots))
	for idx := range roots {
		reachable[idx] = true
		worklist = append(worklist, idx)
	}

	for len(worklist) > 0 {
		idx := worklist[0]
		worklist = worklist[1:]

		// Imported functions have no body to scan.
		if idx < numImported {
			continue
		}
		localIdx := int(idx - numImported)
		if localIdx >= len(m.Funcs) {
			continue
		}

		for _, inst := range m.Funcs[localIdx].Body {
			op, ok := inst.Operand.(wasm.FuncOperand)
			if !ok || reachable[op.Index] {
				continue
			}
			reachable[op.Index] = true
			worklist = append(worklist, op.Index)
		}
	}
	return reachable
}

// buildReindexMap maps old function indices to post-sweep indices and
// returns the dead set keyed by local index.
func buildReindexMap(m *wasm.Module, reachable map[uint32]bool, numImported uint32) (map[uint32]uint32, map[int]bool) {
	reindex := map[uint32]uint32{}
	dead := map[int]bool{}

	for i := uint32(0); i < numImported; i++ {
		reindex[i] = i
	}

	next := numImported
	for i := range m.Funcs {
		oldIdx := numImported + uint32(i)
		if reachable[oldIdx] {
			reindex[oldIdx] = next
			next++
		} else {
			dead[i] = true
		}
	}
	return reindex, dead
}

// sweep drops dead functions and renumbers every surviving reference:
// bodies, global init expressions, exports, start, element segments.
func sweep(m *wasm.Module, reindex map[uint32]uint32, dead map[int]bool) {
	kept := make([]wasm.Function, 0, len(m.Funcs)-len(dead))
	for i := range m.Funcs {
		if !dead[i] {
			kept = append(kept, m.Funcs[i])
		}
	}
	m.Funcs = kept

	renumber := func(insts []wasm.Instruction) {
		for i := range insts {
			if op, ok := insts[i].Operand.(wasm.FuncOperand); ok {
				if newIdx, ok := reindex[op.Index]; ok {
					insts[i].Operand = wasm.FuncOperand{Index: newIdx}
				}
			}
		}
	}

	for i := range m.Funcs {
		renumber(m.Funcs[i].Body)
	}
	for i := range m.Globals {
		renumber(m.Globals[i].Init)
	}
	for i := range m.Exports {
		if m.Exports[i].Kind != wasm.KindFunc {
			continue
		}
		if newIdx, ok := reindex[m.Exports[i].Index]; ok {
			m.Exports[i].Index = newIdx
		}
	}
	if m.Start != nil {
		if newIdx, ok := reindex[*m.Start]; ok {
			m.Start = &newIdx
		}
	}
	for si := range m.Elems {
		for fi := range m.Elems[si].FuncIndexes {
			if newIdx, ok := reindex[m.Elems[si].FuncIndexes[fi]]; ok {
				m.Elems[si].FuncIndexes[fi] = newIdx
			}
		}
	}
}
