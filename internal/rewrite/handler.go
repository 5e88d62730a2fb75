// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

// Package rewrite retrofits stale symbolic references inside decoded modules.
// Handlers inspect instructions one at a time and patch the ones that still
// point at retired host symbols; the engine drives the handlers across every
// function body and collects what they did into a report.
package rewrite

import (
	"github.com/retreadlabs/retread/internal/wasm"
)

// Handler examines one instruction at a time and may rewrite it in place.
//
// Rewrite returns true only when it mutated the instruction. Handlers that
// add imports do so through the module's reference-universe operations
// (AddImportedGlobal, AddImportedFunc), which keep every other index in the
// module consistent.
//
// Phrases, DidRewrite, and Reset manage pass-scoped state: the engine resets
// every handler before a module and snapshots phrases after it, so nothing
// carries over between modules.
type Handler interface {
	Name() string
	Rewrite(m *wasm.Module, fn *wasm.Function, inst *wasm.Instruction) (bool, error)
	Phrases() []string
	DidRewrite() bool
	Reset()
}

// Recorder is the pass-scoped bookkeeping shared by the built-in handlers:
// embed it and call record once per rewrite.
type Recorder struct {
	phrases []string
}

func (r *Recorder) record(phrase string) {
	r.phrases = append(r.phrases, phrase)
}

// Phrases returns the rewrite descriptions accumulated since the last Reset,
// in occurrence order.
func (r *Recorder) Phrases() []string {
	return r.phrases
}

// DidRewrite reports whether anything was recorded since the last Reset.
func (r *Recorder) DidRewrite() bool {
	return len(r.phrases) > 0
}

// Reset clears the pass-scoped state.
func (r *Recorder) Reset() {
	r.phrases = nil
}
