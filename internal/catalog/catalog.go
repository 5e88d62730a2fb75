// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

// Package catalog models the host API surface: which namespaces exist, which
// globals and functions each one exports, and how namespaces inherit members
// from one another. Redirect targets are resolved against a catalog, so a
// rewrite can never point a module at a symbol the host does not provide.
package catalog

import (
	"fmt"
	"sort"

	"github.com/retreadlabs/retread/internal/errors"
	"github.com/retreadlabs/retread/internal/wasm"
)

// GlobalDecl declares one importable global on a namespace.
type GlobalDecl struct {
	Type    wasm.ValType
	Mutable bool
}

// FuncDecl declares one importable function on a namespace.
type FuncDecl struct {
	Params  []wasm.ValType
	Results []wasm.ValType
}

// Namespace is one two-level import module name offered by the host. A
// namespace with a non-empty Extends inherits every member of its parent
// chain; a member declared locally shadows an inherited one with the same
// name.
type Namespace struct {
	Name    string
	Extends string
	Globals map[string]GlobalDecl
	Funcs   map[string]FuncDecl
}

// Catalog is the full host surface for one API version.
type Catalog struct {
	apiVersion string
	namespaces map[string]Namespace
}

// New returns an empty catalog for the given host API version.
func New(apiVersion string) *Catalog {
	return &Catalog{
		apiVersion: apiVersion,
		namespaces: make(map[string]Namespace),
	}
}

// APIVersion reports the host API version this catalog describes.
func (c *Catalog) APIVersion() string {
	return c.apiVersion
}

// Add registers a namespace. Adding a name twice is an error: the catalog is
// a declaration of the host surface, and a duplicate means the declaration
// itself is wrong.
func (c *Catalog) Add(ns Namespace) error {
	if ns.Name == "" {
		return errors.WrapBadManifest("namespace with empty name")
	}
	if _, ok := c.namespaces[ns.Name]; ok {
		return errors.WrapDuplicateNamespace(ns.Name)
	}
	c.namespaces[ns.Name] = ns
	return nil
}

// Has reports whether the catalog declares the named namespace.
func (c *Catalog) Has(name string) bool {
	_, ok := c.namespaces[name]
	return ok
}

// Namespaces lists every declared namespace name in sorted order.
func (c *Catalog) Namespaces() []string {
	names := make([]string, 0, len(c.namespaces))
	for name := range c.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the inheritance graph: every Extends link must name a
// declared namespace, and no chain may loop back on itself.
func (c *Catalog) Validate() error {
	names := c.Namespaces()
	for _, name := range names {
		seen := map[string]bool{}
		cur := name
		for cur != "" {
			if seen[cur] {
				return errors.WrapBadManifest(fmt.Sprintf("namespace %s: inheritance cycle through %s", name, cur))
			}
			seen[cur] = true
			ns, ok := c.namespaces[cur]
			if !ok {
				return errors.WrapBadManifest(fmt.Sprintf("namespace %s: extends undeclared namespace %s", name, cur))
			}
			cur = ns.Extends
		}
	}
	return nil
}

// ResolveGlobal looks up a global member starting at the given namespace and
// walking the Extends chain until a declaration is found. The returned
// target's module name is the namespace the lookup started at, not the
// ancestor that declared the member: an inherited member is imported through
// the namespace that offers it.
func (c *Catalog) ResolveGlobal(namespace, member string) (wasm.GlobalTarget, error) {
	decl, err := resolveMember(c, namespace, member, func(ns Namespace) (GlobalDecl, bool) {
		d, ok := ns.Globals[member]
		return d, ok
	})
	if err != nil {
		return wasm.GlobalTarget{}, err
	}
	return wasm.GlobalTarget{
		Ref:  wasm.SymbolRef{Module: namespace, Name: member},
		Type: wasm.GlobalType{Type: decl.Type, Mutable: decl.Mutable},
	}, nil
}

// ResolveFunc looks up a function member the same way ResolveGlobal looks up
// a global.
func (c *Catalog) ResolveFunc(namespace, member string) (wasm.FuncTarget, error) {
	decl, err := resolveMember(c, namespace, member, func(ns Namespace) (FuncDecl, bool) {
		d, ok := ns.Funcs[member]
		return d, ok
	})
	if err != nil {
		return wasm.FuncTarget{}, err
	}
	return wasm.FuncTarget{
		Ref:  wasm.SymbolRef{Module: namespace, Name: member},
		Type: wasm.FuncType{Params: decl.Params, Results: decl.Results},
	}, nil
}

// resolveMember walks the inheritance chain from namespace, returning the
// nearest declaration lookup finds. The walk carries its own cycle guard so
// a hand-built catalog that skipped Validate still terminates.
func resolveMember[D any](c *Catalog, namespace, member string, lookup func(Namespace) (D, bool)) (D, error) {
	var zero D
	seen := map[string]bool{}
	cur := namespace
	for cur != "" {
		if seen[cur] {
			return zero, errors.WrapBadManifest(fmt.Sprintf("namespace %s: inheritance cycle through %s", namespace, cur))
		}
		seen[cur] = true
		ns, ok := c.namespaces[cur]
		if !ok {
			return zero, errors.WrapUnknownNamespace(cur)
		}
		if decl, ok := lookup(ns); ok {
			return decl, nil
		}
		cur = ns.Extends
	}
	return zero, errors.WrapUnknownMember(namespace, member)
}

// Member is one entry of a namespace's effective surface: the member name,
// what kind of entity it is, its type rendered as text, and which namespace
// in the chain declared it.
type Member struct {
	Name       string
	Kind       string // "global" or "func"
	Type       string
	DeclaredBy string
}

// Surface flattens a namespace's effective member set: everything declared
// locally plus everything inherited, with local declarations shadowing
// inherited ones. Members come back sorted by name, funcs and globals
// interleaved.
func (c *Catalog) Surface(namespace string) ([]Member, error) {
	if _, ok := c.namespaces[namespace]; !ok {
		return nil, errors.WrapUnknownNamespace(namespace)
	}

	globals := map[string]Member{}
	funcs := map[string]Member{}
	seen := map[string]bool{}
	cur := namespace
	for cur != "" {
		if seen[cur] {
			return nil, errors.WrapBadManifest(fmt.Sprintf("namespace %s: inheritance cycle through %s", namespace, cur))
		}
		seen[cur] = true
		ns, ok := c.namespaces[cur]
		if !ok {
			return nil, errors.WrapUnknownNamespace(cur)
		}
		for name, decl := range ns.Globals {
			if _, ok := globals[name]; ok {
				continue // shadowed by a nearer declaration
			}
			globals[name] = Member{
				Name:       name,
				Kind:       "global",
				Type:       wasm.GlobalType{Type: decl.Type, Mutable: decl.Mutable}.String(),
				DeclaredBy: cur,
			}
		}
		for name, decl := range ns.Funcs {
			if _, ok := funcs[name]; ok {
				continue
			}
			funcs[name] = Member{
				Name:       name,
				Kind:       "func",
				Type:       wasm.FuncType{Params: decl.Params, Results: decl.Results}.String(),
				DeclaredBy: cur,
			}
		}
		cur = ns.Extends
	}

	var members []Member
	for _, m := range globals {
		members = append(members, m)
	}
	for _, m := range funcs {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Name != members[j].Name {
			return members[i].Name < members[j].Name
		}
		return members[i].Kind < members[j].Kind
	})
	return members, nil
}
