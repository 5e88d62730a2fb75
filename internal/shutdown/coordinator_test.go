// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package shutdown

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLIFOAndOnce(t *testing.T) {
	c := NewCoordinator()
	var order []string

	for _, name := range []string{"store", "daemon", "telemetry"} {
		name := name
		c.Register(name, func(ctx context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, []string{"telemetry", "daemon", "store"}, order)

	// Second run is a no-op.
	order = order[:0]
	require.NoError(t, c.Run(context.Background()))
	assert.Empty(t, order)
}

func TestRunCollectsFailures(t *testing.T) {
	c := NewCoordinator()
	var ran []string

	c.Register("store", func(ctx context.Context) error {
		ran = append(ran, "store")
		return nil
	})
	c.Register("daemon", func(ctx context.Context) error {
		ran = append(ran, "daemon")
		return fmt.Errorf("listener stuck")
	})

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon: listener stuck")

	// A failing hook must not stop the rest.
	assert.Equal(t, []string{"daemon", "store"}, ran)
}

func TestRegisterAfterRunIgnored(t *testing.T) {
	c := NewCoordinator()
	require.NoError(t, c.Run(context.Background()))

	called := false
	c.Register("late", func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, c.Run(context.Background()))
	assert.False(t, called)
}

func TestRunSplitsDeadline(t *testing.T) {
	c := NewCoordinator()
	var deadlines []time.Time

	for i := 0; i < 2; i++ {
		c.Register(fmt.Sprintf("hook%d", i), func(ctx context.Context) error {
			d, ok := ctx.Deadline()
			require.True(t, ok)
			deadlines = append(deadlines, d)
			return nil
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.Run(ctx))

	require.Len(t, deadlines, 2)
	// The first hook to run gets roughly half the budget; the last one
	// gets whatever is left.
	assert.True(t, deadlines[0].Before(deadlines[1]))
}

func TestNilHookIgnored(t *testing.T) {
	c := NewCoordinator()
	c.Register("noop", nil)
	require.NoError(t, c.Run(context.Background()))
}
