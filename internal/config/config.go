// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

// Package config carries runtime settings for retread. Precedence is
// flags > RETREAD_* environment > .retread.toml > defaults; the cmd layer
// applies flags on top of what Load returns.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/retreadlabs/retread/internal/errors"
)

// Config represents the general configuration for retread.
type Config struct {
	// ManifestPath locates the host API catalog manifest.
	ManifestPath string `toml:"manifest"`
	// OutputDir receives rewritten modules when not applying in place.
	OutputDir string `toml:"output_dir"`
	// DataDir holds retread's own state (history database, default
	// quarantine location).
	DataDir string `toml:"data_dir"`
	// QuarantineDir overrides where failed modules are parked.
	QuarantineDir      string `toml:"quarantine_dir"`
	QuarantineMaxBytes int64  `toml:"quarantine_max_bytes"`
	LogLevel           string `toml:"log_level"`
	LogFormat          string `toml:"log_format"`
	DaemonAddr         string `toml:"daemon_addr"`
	DaemonToken        string `toml:"daemon_token"`
	// OTLPEndpoint enables tracing export when non-empty.
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	dataDir := filepath.Join(os.ExpandEnv("$HOME"), ".retread")
	return &Config{
		DataDir:            dataDir,
		QuarantineDir:      filepath.Join(dataDir, "quarantine"),
		QuarantineMaxBytes: 256 * 1024 * 1024,
		LogLevel:           "info",
		LogFormat:          "text",
		DaemonAddr:         ":7423",
	}
}

// Load builds the effective configuration: defaults, then the first config
// file found, then environment variables. The result is validated.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{
		".retread.toml",
		filepath.Join(os.ExpandEnv("$HOME"), ".retread.toml"),
		"/etc/retread/config.toml",
	} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := cfg.MergeTOML(path); err != nil {
			return nil, err
		}
		break
	}

	cfg.FromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MergeTOML overlays settings from a TOML file; keys absent from the file
// keep their current values.
func (c *Config) MergeTOML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WrapInvalidConfig(fmt.Sprintf("read %s: %v", path, err))
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return errors.WrapInvalidConfig(fmt.Sprintf("parse %s: %v", path, err))
	}
	return nil
}

// FromEnv overlays RETREAD_* environment variables.
func (c *Config) FromEnv() *Config {
	c.ManifestPath = getEnv("RETREAD_MANIFEST", c.ManifestPath)
	c.OutputDir = getEnv("RETREAD_OUTPUT_DIR", c.OutputDir)
	c.DataDir = getEnv("RETREAD_DATA_DIR", c.DataDir)
	c.QuarantineDir = getEnv("RETREAD_QUARANTINE_DIR", c.QuarantineDir)
	c.LogLevel = getEnv("RETREAD_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("RETREAD_LOG_FORMAT", c.LogFormat)
	c.DaemonAddr = getEnv("RETREAD_DAEMON_ADDR", c.DaemonAddr)
	c.DaemonToken = getEnv("RETREAD_DAEMON_TOKEN", c.DaemonToken)
	c.OTLPEndpoint = getEnv("RETREAD_OTLP_ENDPOINT", c.OTLPEndpoint)

	if v := os.Getenv("RETREAD_QUARANTINE_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.QuarantineMaxBytes = n
		}
	}
	return c
}

// HistoryPath returns the location of the pass-history database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Manifest: %s, DataDir: %s, LogLevel: %s, DaemonAddr: %s}",
		c.ManifestPath, c.DataDir, c.LogLevel, c.DaemonAddr,
	)
}

func (c *Config) WithManifest(path string) *Config {
	c.ManifestPath = path
	return c
}

func (c *Config) WithOutputDir(dir string) *Config {
	c.OutputDir = dir
	return c
}

func (c *Config) WithLogLevel(level string) *Config {
	c.LogLevel = level
	return c
}

func (c *Config) WithQuarantineDir(dir string) *Config {
	c.QuarantineDir = dir
	return c
}

func (c *Config) WithDaemonAddr(addr string) *Config {
	c.DaemonAddr = addr
	return c
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
