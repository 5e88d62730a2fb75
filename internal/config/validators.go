// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"net"

	"github.com/retreadlabs/retread/internal/errors"
	"github.com/retreadlabs/retread/internal/logger"
)

// Validator validates a specific aspect of the configuration.
type Validator interface {
	Validate(cfg *Config) error
}

// LoggingValidator checks the log level and format.
type LoggingValidator struct{}

func (v LoggingValidator) Validate(cfg *Config) error {
	if _, ok := logger.ParseLevel(cfg.LogLevel); !ok {
		return errors.WrapInvalidConfig(fmt.Sprintf("log level %q", cfg.LogLevel))
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return errors.WrapInvalidConfig(fmt.Sprintf("log format %q, want text or json", cfg.LogFormat))
	}
	return nil
}

// QuarantineValidator checks the quarantine byte cap.
type QuarantineValidator struct{}

func (v QuarantineValidator) Validate(cfg *Config) error {
	if cfg.QuarantineMaxBytes < 0 {
		return errors.WrapInvalidConfig(fmt.Sprintf("quarantine cap %d is negative", cfg.QuarantineMaxBytes))
	}
	return nil
}

// DaemonValidator checks that the daemon listen address is usable.
type DaemonValidator struct{}

func (v DaemonValidator) Validate(cfg *Config) error {
	if cfg.DaemonAddr == "" {
		return errors.WrapInvalidConfig("daemon addr is empty")
	}
	if _, _, err := net.SplitHostPort(cfg.DaemonAddr); err != nil {
		return errors.WrapInvalidConfig(fmt.Sprintf("daemon addr %q: %v", cfg.DaemonAddr, err))
	}
	return nil
}

// DataDirValidator checks that retread has somewhere to keep state.
type DataDirValidator struct{}

func (v DataDirValidator) Validate(cfg *Config) error {
	if cfg.DataDir == "" {
		return errors.WrapInvalidConfig("data dir is empty")
	}
	return nil
}

// DefaultValidators returns the standard set of validators.
func DefaultValidators() []Validator {
	return []Validator{
		LoggingValidator{},
		QuarantineValidator{},
		DaemonValidator{},
		DataDirValidator{},
	}
}

// RunValidators executes each validator against the config, returning the
// first error encountered.
func RunValidators(cfg *Config, validators []Validator) error {
	for _, v := range validators {
		if err := v.Validate(cfg); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects settings no command could run with.
func (c *Config) Validate() error {
	return RunValidators(c, DefaultValidators())
}
