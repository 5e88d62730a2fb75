// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/retreadlabs/retread/internal/history"
)

func TestHistoryLine(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	rewritten := history.Entry{
		Module:    "billing.wasm",
		Status:    history.StatusRewritten,
		Phrases:   []string{"global env.tick_count -> env.shimmer_total"},
		Timestamp: ts,
	}
	line := historyLine(rewritten)
	assert.Contains(t, line, "rewritten")
	assert.Contains(t, line, "billing.wasm")
	assert.Contains(t, line, "env.tick_count -> env.shimmer_total")

	clean := history.Entry{Module: "metrics.wasm", Status: history.StatusClean, Timestamp: ts}
	line = historyLine(clean)
	assert.Contains(t, line, "clean")
	assert.Equal(t, strings.TrimRight(line, " "), line, "no trailing padding on detail-less lines")

	failed := history.Entry{
		Module:    "broken.wasm",
		Status:    history.StatusFailed,
		Detail:    "invalid wasm module",
		Timestamp: ts,
	}
	line = historyLine(failed)
	assert.Contains(t, line, "failed")
	assert.Contains(t, line, "invalid wasm module")
}
