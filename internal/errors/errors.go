// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for comparison with errors.Is
var (
	ErrInvalidModule      = errors.New("invalid wasm module")
	ErrUnsupported        = errors.New("unsupported instruction")
	ErrUnknownNamespace   = errors.New("unknown namespace")
	ErrUnknownMember      = errors.New("unknown member")
	ErrDuplicateNamespace = errors.New("duplicate namespace")
	ErrBadManifest        = errors.New("invalid manifest")
	ErrRewriteFault       = errors.New("rewrite fault")
	ErrABIIncompatible    = errors.New("incompatible plugin abi")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrPluginLoad         = errors.New("handler plugin load failed")
	ErrStoreUnavailable   = errors.New("history store unavailable")
	ErrInterrupted        = errors.New("interrupted")
)

// Wrap functions for consistent error wrapping
func WrapInvalidModule(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidModule, msg)
}

func WrapInvalidModuleAt(offset int, msg string) error {
	return fmt.Errorf("%w: offset 0x%x: %s", ErrInvalidModule, offset, msg)
}

func WrapUnsupported(msg string) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, msg)
}

func WrapUnknownNamespace(name string) error {
	return fmt.Errorf("%w: %s", ErrUnknownNamespace, name)
}

func WrapUnknownMember(namespace, member string) error {
	return fmt.Errorf("%w: %s has no member %s", ErrUnknownMember, namespace, member)
}

func WrapDuplicateNamespace(name string) error {
	return fmt.Errorf("%w: %s", ErrDuplicateNamespace, name)
}

func WrapBadManifest(msg string) error {
	return fmt.Errorf("%w: %s", ErrBadManifest, msg)
}

func WrapManifestParse(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrBadManifest, path, err)
}

func WrapRewriteFault(handler string, err error) error {
	return fmt.Errorf("%w: handler %s: %w", ErrRewriteFault, handler, err)
}

func WrapABIIncompatible(moduleVersion, hostVersion string) error {
	return fmt.Errorf("%w: module built for api %s, host provides %s", ErrABIIncompatible, moduleVersion, hostVersion)
}

func WrapInvalidConfig(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}

func WrapPluginLoad(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPluginLoad, path, err)
}

func WrapStoreUnavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
