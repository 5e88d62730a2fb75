// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package rewrite

import (
	"fmt"

	"github.com/retreadlabs/retread/internal/errors"
	"github.com/retreadlabs/retread/internal/logger"
	"github.com/retreadlabs/retread/internal/wasm"
)

// Engine drives an ordered list of handlers across a module. Order is the
// only precedence mechanism: each instruction is offered to handlers in
// registration order and the first one that rewrites it consumes it.
type Engine struct {
	handlers []Handler
}

// NewEngine builds an engine over the given handlers. An engine with no
// handlers still walks every instruction and produces an empty report.
func NewEngine(handlers ...Handler) *Engine {
	return &Engine{handlers: handlers}
}

// RewriteModule runs one pass over every function body in declaration order.
// Handler state is reset first, so reports never leak across modules. A
// handler error or panic aborts the pass with no report; the module should
// be discarded, the engine stays usable.
func (e *Engine) RewriteModule(m *wasm.Module) (*Report, error) {
	for _, h := range e.handlers {
		h.Reset()
	}

	report := &Report{}
	// Phrases already copied into the report, per handler. Snapshotting as
	// rewrites happen keeps report order aligned with instruction order
	// rather than handler order.
	taken := make([]int, len(e.handlers))

	for fi := range m.Funcs {
		if err := e.rewriteFunc(m, fi, report, taken); err != nil {
			return nil, err
		}
	}

	for hi, h := range e.handlers {
		if phrases := h.Phrases(); len(phrases) > taken[hi] {
			report.Phrases = append(report.Phrases, phrases[taken[hi]:]...)
		}
	}

	logger.Logger.Debug("rewrite pass complete",
		"visited", report.Visited,
		"rewritten", report.Rewritten)
	return report, nil
}

func (e *Engine) rewriteFunc(m *wasm.Module, fi int, report *Report, taken []int) (err error) {
	fn := &m.Funcs[fi]
	instIdx := -1
	handlerName := ""
	defer func() {
		if r := recover(); r != nil {
			err = e.fault(m, fi, instIdx, handlerName, fmt.Errorf("panic: %v", r))
		}
	}()

	for ii := range fn.Body {
		instIdx = ii
		report.Visited++
		for hi, h := range e.handlers {
			handlerName = h.Name()
			changed, herr := h.Rewrite(m, fn, &fn.Body[ii])
			if herr != nil {
				return e.fault(m, fi, ii, handlerName, herr)
			}
			if !changed {
				continue
			}
			report.Rewritten++
			if phrases := h.Phrases(); len(phrases) > taken[hi] {
				report.Phrases = append(report.Phrases, phrases[taken[hi]:]...)
				taken[hi] = len(phrases)
			}
			logger.Logger.Debug("rewrote instruction",
				"handler", handlerName,
				"func", m.NumImportedFuncs()+uint32(fi),
				"instruction", ii)
			break
		}
	}
	return nil
}

func (e *Engine) fault(m *wasm.Module, fi, ii int, handler string, err error) error {
	funcIdx := m.NumImportedFuncs() + uint32(fi)
	return fmt.Errorf("func %d: instruction %d: %w", funcIdx, ii, errors.WrapRewriteFault(handler, err))
}
