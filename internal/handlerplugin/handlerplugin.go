// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

// Package handlerplugin loads third-party rewrite handlers from Go plugin
// files, so hosts can teach retread about their own retired symbols
// without recompiling it.
//
// A handler plugin is a shared library that exports
//
//	var HandlerAPIVersion = "1.0.0"
//	func NewHandler() (rewrite.Handler, error)
//
// Handlers loaded this way slot into the engine chain after the built-in
// redirect handlers.
package handlerplugin

import (
	"errors"
	"fmt"
	"path/filepath"
	"plugin"
	"sort"
	"sync"

	retreaderr "github.com/retreadlabs/retread/internal/errors"
	"github.com/retreadlabs/retread/internal/rewrite"
)

// APIVersion is the handler plugin contract version. Plugins built against
// a different contract are refused.
const APIVersion = "1.0.0"

// Exported symbol names every handler plugin must provide.
const (
	FactorySymbol = "NewHandler"
	VersionSymbol = "HandlerAPIVersion"
)

// Loader opens handler plugins and keeps them by handler name.
type Loader struct {
	mu       sync.RWMutex
	handlers map[string]rewrite.Handler
}

// NewLoader creates an empty plugin loader.
func NewLoader() *Loader {
	return &Loader{handlers: make(map[string]rewrite.Handler)}
}

// Load opens a single plugin file and registers its handler. A handler
// with the same name replaces the previous one.
func (l *Loader) Load(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, err := plugin.Open(path)
	if err != nil {
		return retreaderr.WrapPluginLoad(path, err)
	}

	verSym, err := p.Lookup(VersionSymbol)
	if err != nil {
		return retreaderr.WrapPluginLoad(path, fmt.Errorf("missing %s: %w", VersionSymbol, err))
	}
	ver, ok := verSym.(*string)
	if !ok {
		return retreaderr.WrapPluginLoad(path, fmt.Errorf("%s is %T, want *string", VersionSymbol, verSym))
	}
	if *ver != APIVersion {
		return retreaderr.WrapPluginLoad(path, fmt.Errorf("api version %s does not match %s", *ver, APIVersion))
	}

	factorySym, err := p.Lookup(FactorySymbol)
	if err != nil {
		return retreaderr.WrapPluginLoad(path, fmt.Errorf("missing %s: %w", FactorySymbol, err))
	}
	factory, ok := factorySym.(func() (rewrite.Handler, error))
	if !ok {
		return retreaderr.WrapPluginLoad(path, fmt.Errorf("%s has wrong signature %T", FactorySymbol, factorySym))
	}

	h, err := factory()
	if err != nil {
		return retreaderr.WrapPluginLoad(path, fmt.Errorf("factory: %w", err))
	}
	if h == nil || h.Name() == "" {
		return retreaderr.WrapPluginLoad(path, errors.New("factory returned an unnamed handler"))
	}

	l.handlers[h.Name()] = h
	return nil
}

// LoadDir loads every *.so file in a directory. Files that fail to load
// do not stop the others; their errors come back joined.
func (l *Loader) LoadDir(dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.so"))
	if err != nil {
		return retreaderr.WrapPluginLoad(dir, err)
	}

	var loadErrors []error
	for _, path := range matches {
		if err := l.Load(path); err != nil {
			loadErrors = append(loadErrors, err)
		}
	}
	return errors.Join(loadErrors...)
}

// Get returns a loaded handler by name.
func (l *Loader) Get(name string) (rewrite.Handler, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	h, ok := l.handlers[name]
	return h, ok
}

// List returns the loaded handler names, sorted.
func (l *Loader) List() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.handlers))
	for name := range l.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handlers returns the loaded handlers in name order, ready to append to
// an engine chain. Name order keeps the chain stable across runs.
func (l *Loader) Handlers() []rewrite.Handler {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.handlers))
	for name := range l.handlers {
		names = append(names, name)
	}
	sort.Strings(names)

	handlers := make([]rewrite.Handler, 0, len(names))
	for _, name := range names {
		handlers = append(handlers, l.handlers[name])
	}
	return handlers
}
