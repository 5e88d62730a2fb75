// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

// Package shutdown coordinates teardown of long-running pieces: the
// daemon listener, the history store, telemetry flushing. Hooks run in
// LIFO order so dependents close before their dependencies.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// HookFunc releases one resource. The context carries a share of the
// overall shutdown deadline.
type HookFunc func(context.Context) error

type hook struct {
	name string
	fn   HookFunc
}

// Coordinator runs registered shutdown hooks exactly once in LIFO order.
type Coordinator struct {
	mu    sync.Mutex
	hooks []hook
	ran   bool
}

func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Register adds a named hook. Registration after Run is ignored.
func (c *Coordinator) Register(name string, fn HookFunc) {
	if fn == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ran {
		return
	}

	c.hooks = append(c.hooks, hook{name: name, fn: fn})
}

// Run executes the hooks newest-first, splitting any deadline on ctx
// evenly across the hooks still to run. Every hook runs even when an
// earlier one fails; the failures come back joined.
func (c *Coordinator) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.ran {
		c.mu.Unlock()
		return nil
	}
	c.ran = true
	hooks := make([]hook, len(c.hooks))
	copy(hooks, c.hooks)
	c.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]

		hookCtx, cancel := perHookContext(ctx, i+1)
		err := h.fn(hookCtx)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}

	return errors.Join(errs...)
}

func perHookContext(ctx context.Context, hooksRemaining int) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok || hooksRemaining <= 0 {
		return ctx, func() {}
	}

	remaining := time.Until(deadline)
	if remaining <= 0 {
		return context.WithTimeout(ctx, 1*time.Millisecond)
	}

	perHook := remaining / time.Duration(hooksRemaining)
	if perHook <= 0 {
		perHook = remaining
	}
	return context.WithTimeout(ctx, perHook)
}
