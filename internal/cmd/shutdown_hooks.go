// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"sync"
	"time"

	"github.com/retreadlabs/retread/internal/history"
	"github.com/retreadlabs/retread/internal/logger"
	"github.com/retreadlabs/retread/internal/shutdown"
)

const shutdownTimeout = 3 * time.Second

var shutdownState struct {
	mu          sync.RWMutex
	coordinator *shutdown.Coordinator
}

func setShutdownCoordinator(c *shutdown.Coordinator) {
	shutdownState.mu.Lock()
	defer shutdownState.mu.Unlock()
	shutdownState.coordinator = c
}

func clearShutdownCoordinator() {
	shutdownState.mu.Lock()
	defer shutdownState.mu.Unlock()
	shutdownState.coordinator = nil
}

func registerShutdownHook(name string, fn shutdown.HookFunc) {
	shutdownState.mu.RLock()
	c := shutdownState.coordinator
	shutdownState.mu.RUnlock()
	if c == nil {
		return
	}
	c.Register(name, fn)
}

func runShutdownHooksWithTimeout(c *shutdown.Coordinator, timeout time.Duration) {
	if c == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := c.Run(ctx); err != nil {
		logger.Logger.Warn("Shutdown hooks completed with errors", "error", err)
	}
}

func registerHistoryCloseHook(store *history.Store) {
	if store == nil {
		return
	}

	registerShutdownHook("history-close", func(ctx context.Context) error {
		_ = ctx
		return store.Close()
	})
}

func registerTelemetryFlushHook(cleanup func()) {
	if cleanup == nil {
		return
	}

	registerShutdownHook("telemetry-flush", func(ctx context.Context) error {
		_ = ctx
		cleanup()
		return nil
	})
}
