// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, ":7423", cfg.DaemonAddr)
	assert.Equal(t, int64(256*1024*1024), cfg.QuarantineMaxBytes)
	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "quarantine"), cfg.QuarantineDir)
	assert.Equal(t, filepath.Join(cfg.DataDir, "history.db"), cfg.HistoryPath())

	require.NoError(t, cfg.Validate())
}

func TestFromEnv(t *testing.T) {
	t.Setenv("RETREAD_MANIFEST", "/etc/retread/api.toml")
	t.Setenv("RETREAD_LOG_LEVEL", "debug")
	t.Setenv("RETREAD_DAEMON_ADDR", "127.0.0.1:9000")
	t.Setenv("RETREAD_QUARANTINE_MAX_BYTES", "1024")

	cfg := DefaultConfig().FromEnv()

	assert.Equal(t, "/etc/retread/api.toml", cfg.ManifestPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:9000", cfg.DaemonAddr)
	assert.Equal(t, int64(1024), cfg.QuarantineMaxBytes)

	// Unset variables leave defaults in place.
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestFromEnvBadSize(t *testing.T) {
	t.Setenv("RETREAD_QUARANTINE_MAX_BYTES", "a lot")

	cfg := DefaultConfig().FromEnv()

	assert.Equal(t, int64(256*1024*1024), cfg.QuarantineMaxBytes)
}

func TestMergeTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".retread.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
manifest = "/srv/host/api.toml"
log_level = "warn"
quarantine_max_bytes = 4096
`), 0o644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.MergeTOML(path))

	assert.Equal(t, "/srv/host/api.toml", cfg.ManifestPath)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, int64(4096), cfg.QuarantineMaxBytes)
	// Keys absent from the file keep their defaults.
	assert.Equal(t, ":7423", cfg.DaemonAddr)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".retread.toml")
	require.NoError(t, os.WriteFile(path, []byte(`log_level = "warn"`), 0o644))
	t.Setenv("RETREAD_LOG_LEVEL", "error")

	cfg := DefaultConfig()
	require.NoError(t, cfg.MergeTOML(path))
	cfg.FromEnv()

	assert.Equal(t, "error", cfg.LogLevel)
}

func TestMergeTOMLErrors(t *testing.T) {
	cfg := DefaultConfig()

	err := cfg.MergeTOML(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("log_level = [whoops"), 0o644))
	err = cfg.MergeTOML(path)
	require.Error(t, err)
}

func TestWithSetters(t *testing.T) {
	cfg := DefaultConfig().
		WithManifest("api.toml").
		WithOutputDir("out").
		WithLogLevel("debug").
		WithQuarantineDir("/tmp/q").
		WithDaemonAddr("localhost:1234")

	assert.Equal(t, "api.toml", cfg.ManifestPath)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/q", cfg.QuarantineDir)
	assert.Equal(t, "localhost:1234", cfg.DaemonAddr)
}

func TestStringOmitsToken(t *testing.T) {
	cfg := DefaultConfig().WithManifest("api.toml")
	cfg.DaemonToken = "super-secret"

	s := cfg.String()
	assert.Contains(t, s, "api.toml")
	assert.NotContains(t, s, "super-secret")
}
