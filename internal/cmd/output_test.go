// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/retreadlabs/retread/internal/history"
)

func TestFormatOutcome(t *testing.T) {
	old := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = old }()

	rewritten := history.Entry{
		Module:  "billing.wasm",
		Status:  history.StatusRewritten,
		Phrases: []string{"global env.tick_count -> env.shimmer_total"},
	}
	line := formatOutcome(rewritten, "stale")
	assert.Contains(t, line, "stale")
	assert.Contains(t, line, "billing.wasm")
	assert.Contains(t, line, "env.tick_count -> env.shimmer_total")

	line = formatOutcome(rewritten, "rewritten")
	assert.Contains(t, line, "rewritten")

	clean := history.Entry{Module: "metrics.wasm", Status: history.StatusClean}
	line = formatOutcome(clean, "stale")
	assert.Contains(t, line, "clean")
	assert.Contains(t, line, "metrics.wasm")

	rejected := history.Entry{
		Module: "future.wasm",
		Status: history.StatusRejected,
		Detail: "module abi 9.0.0 is newer than host api 2.3.0",
	}
	line = formatOutcome(rejected, "stale")
	assert.Contains(t, line, "rejected")
	assert.Contains(t, line, "9.0.0")

	failed := history.Entry{
		Module: "broken.wasm",
		Status: history.StatusFailed,
		Detail: "invalid wasm module: bad magic",
	}
	line = formatOutcome(failed, "stale")
	assert.Contains(t, line, "failed")
	assert.Contains(t, line, "bad magic")
}

func TestManifestPathPrecedence(t *testing.T) {
	oldCfg := cfg
	defer func() { cfg = oldCfg }()

	cfg = nil
	assert.Equal(t, "flag.toml", manifestPath("flag.toml"))
	assert.Equal(t, "", manifestPath(""))

	cfg = activeConfig().WithManifest("config.toml")
	assert.Equal(t, "config.toml", manifestPath(""))
	assert.Equal(t, "flag.toml", manifestPath("flag.toml"))
}
