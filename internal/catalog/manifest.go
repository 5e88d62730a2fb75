// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	goversion "github.com/hashicorp/go-version"

	"github.com/retreadlabs/retread/internal/errors"
	"github.com/retreadlabs/retread/internal/wasm"
)

// Manifest is the on-disk catalog format. One TOML file declares the host
// API version, every namespace the host offers, and the redirects that map
// retired symbols onto their replacements.
type Manifest struct {
	APIVersion string              `toml:"api-version"`
	Namespaces []ManifestNamespace `toml:"namespace"`
	Redirects  []ManifestRedirect  `toml:"redirect"`

	// Path is where the manifest was loaded from (set at load time).
	Path string `toml:"-"`
}

// ManifestNamespace is one [[namespace]] table.
type ManifestNamespace struct {
	Name    string                    `toml:"name"`
	Extends string                    `toml:"extends"`
	Globals map[string]ManifestGlobal `toml:"globals"`
	Funcs   map[string]ManifestFunc   `toml:"funcs"`
}

// ManifestGlobal declares one global member in TOML form.
type ManifestGlobal struct {
	Type    string `toml:"type"`
	Mutable bool   `toml:"mutable"`
}

// ManifestFunc declares one function member in TOML form.
type ManifestFunc struct {
	Params  []string `toml:"params"`
	Results []string `toml:"results"`
}

// ManifestRedirect is one [[redirect]] table. From and To are two-element
// arrays: namespace then member name.
type ManifestRedirect struct {
	Kind  string   `toml:"kind"`
	From  []string `toml:"from"`
	To    []string `toml:"to"`
	Since string   `toml:"since"`
}

// LoadManifest parses a catalog manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, errors.WrapManifestParse(path, err)
	}
	m.Path = path

	if m.APIVersion == "" {
		return nil, errors.WrapBadManifest("missing api-version")
	}
	if _, err := goversion.NewVersion(m.APIVersion); err != nil {
		return nil, errors.WrapBadManifest(fmt.Sprintf("api-version %q is not a version", m.APIVersion))
	}

	return &m, nil
}

// Catalog builds and validates the host surface the manifest declares.
func (m *Manifest) Catalog() (*Catalog, error) {
	c := New(m.APIVersion)
	for _, mns := range m.Namespaces {
		ns := Namespace{
			Name:    mns.Name,
			Extends: mns.Extends,
			Globals: make(map[string]GlobalDecl, len(mns.Globals)),
			Funcs:   make(map[string]FuncDecl, len(mns.Funcs)),
		}
		for name, g := range mns.Globals {
			vt, err := wasm.ParseValType(g.Type)
			if err != nil {
				return nil, errors.WrapBadManifest(fmt.Sprintf("namespace %s: global %s: unknown type %q", mns.Name, name, g.Type))
			}
			ns.Globals[name] = GlobalDecl{Type: vt, Mutable: g.Mutable}
		}
		for name, f := range mns.Funcs {
			decl, err := parseFuncDecl(f)
			if err != nil {
				return nil, errors.WrapBadManifest(fmt.Sprintf("namespace %s: func %s: %v", mns.Name, name, err))
			}
			ns.Funcs[name] = decl
		}
		if err := c.Add(ns); err != nil {
			return nil, err
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func parseFuncDecl(f ManifestFunc) (FuncDecl, error) {
	decl := FuncDecl{
		Params:  make([]wasm.ValType, 0, len(f.Params)),
		Results: make([]wasm.ValType, 0, len(f.Results)),
	}
	for _, p := range f.Params {
		vt, err := wasm.ParseValType(p)
		if err != nil {
			return FuncDecl{}, fmt.Errorf("unknown param type %q", p)
		}
		decl.Params = append(decl.Params, vt)
	}
	for _, r := range f.Results {
		vt, err := wasm.ParseValType(r)
		if err != nil {
			return FuncDecl{}, fmt.Errorf("unknown result type %q", r)
		}
		decl.Results = append(decl.Results, vt)
	}
	return decl, nil
}

// RedirectKind says which import kind a redirect applies to.
type RedirectKind string

const (
	RedirectGlobal RedirectKind = "global"
	RedirectFunc   RedirectKind = "func"
)

// Redirect maps one retired symbol onto its current replacement. Since
// records the first host API version whose surface dropped the old symbol.
type Redirect struct {
	Kind  RedirectKind
	From  wasm.SymbolRef
	To    wasm.SymbolRef
	Since string
}

// ParsedRedirects validates and converts the manifest's redirect tables.
func (m *Manifest) ParsedRedirects() ([]Redirect, error) {
	redirects := make([]Redirect, 0, len(m.Redirects))
	for i, r := range m.Redirects {
		kind := RedirectKind(r.Kind)
		if kind != RedirectGlobal && kind != RedirectFunc {
			return nil, errors.WrapBadManifest(fmt.Sprintf("redirect %d: kind must be global or func, got %q", i, r.Kind))
		}
		from, err := symbolPair(r.From)
		if err != nil {
			return nil, errors.WrapBadManifest(fmt.Sprintf("redirect %d: from: %v", i, err))
		}
		to, err := symbolPair(r.To)
		if err != nil {
			return nil, errors.WrapBadManifest(fmt.Sprintf("redirect %d: to: %v", i, err))
		}
		if r.Since != "" {
			if _, err := goversion.NewVersion(r.Since); err != nil {
				return nil, errors.WrapBadManifest(fmt.Sprintf("redirect %d: since %q is not a version", i, r.Since))
			}
		}
		redirects = append(redirects, Redirect{Kind: kind, From: from, To: to, Since: r.Since})
	}
	return redirects, nil
}

func symbolPair(parts []string) (wasm.SymbolRef, error) {
	if len(parts) != 2 {
		return wasm.SymbolRef{}, fmt.Errorf("want [namespace, member], got %d elements", len(parts))
	}
	if parts[0] == "" || parts[1] == "" {
		return wasm.SymbolRef{}, fmt.Errorf("namespace and member must be non-empty")
	}
	return wasm.SymbolRef{Module: parts[0], Name: parts[1]}, nil
}
