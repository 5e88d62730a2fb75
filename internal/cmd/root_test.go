// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retreadlabs/retread/internal/errors"
	"github.com/retreadlabs/retread/internal/shutdown"
)

func TestExecuteWithSignalsInterruptReturnsSentinelAndRunsShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	coordinator := shutdown.NewCoordinator()
	ranShutdownHook := make(chan struct{}, 1)
	coordinator.Register("test-hook", func(ctx context.Context) error {
		_ = ctx
		ranShutdownHook <- struct{}{}
		return nil
	})

	done := make(chan error, 1)
	go func() {
		done <- executeWithSignals(ctx, cancel, sigCh, coordinator, func(execCtx context.Context) error {
			<-execCtx.Done()
			return execCtx.Err()
		})
	}()

	time.Sleep(30 * time.Millisecond)
	sigCh <- os.Interrupt

	select {
	case err := <-done:
		assert.True(t, IsInterrupted(err), "expected interrupt error, got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for executeWithSignals to return")
	}

	select {
	case <-ranShutdownHook:
	case <-time.After(1 * time.Second):
		t.Fatal("expected shutdown hook to run")
	}
}

func TestExecuteWithSignalsNoInterruptReturnsExecError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	coordinator := shutdown.NewCoordinator()

	expectedErr := context.DeadlineExceeded
	err := executeWithSignals(ctx, cancel, sigCh, coordinator, func(execCtx context.Context) error {
		_ = execCtx
		return expectedErr
	})
	require.Equal(t, expectedErr, err)
}

func TestExecuteWithSignalsRunsHooksOnNormalExit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	coordinator := shutdown.NewCoordinator()
	ran := false
	coordinator.Register("close-things", func(ctx context.Context) error {
		_ = ctx
		ran = true
		return nil
	})

	err := executeWithSignals(ctx, cancel, sigCh, coordinator, func(execCtx context.Context) error {
		_ = execCtx
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran, "expected shutdown hook to run on normal exit")
}

func TestRegisterShutdownHookWithoutCoordinator(t *testing.T) {
	clearShutdownCoordinator()

	// Must not panic when no coordinator is installed.
	registerShutdownHook("orphan", func(ctx context.Context) error {
		_ = ctx
		return nil
	})
}

func TestIsInterrupted(t *testing.T) {
	assert.True(t, IsInterrupted(errors.ErrInterrupted))
	assert.False(t, IsInterrupted(nil))
	assert.False(t, IsInterrupted(context.Canceled))
	assert.True(t, IsCancellation(context.Canceled))
}
