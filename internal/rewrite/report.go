// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package rewrite

// Report summarizes one engine pass over one module.
type Report struct {
	// Visited counts the instructions offered to handlers.
	Visited int
	// Rewritten counts the instructions a handler changed.
	Rewritten int
	// Phrases describes each rewrite in the order it happened.
	Phrases []string
}

// Any reports whether the pass changed the module.
func (r *Report) Any() bool {
	return r.Rewritten > 0
}
