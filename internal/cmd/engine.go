// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/retreadlabs/retread/internal/catalog"
	"github.com/retreadlabs/retread/internal/errors"
	"github.com/retreadlabs/retread/internal/handlerplugin"
	"github.com/retreadlabs/retread/internal/logger"
	"github.com/retreadlabs/retread/internal/rewrite"
)

// buildEngine loads the manifest and assembles the rewrite chain: the
// catalog-backed redirect handlers first, then handlers from compiled
// plugins under handlerDir in name order. The manifest comes back too so
// callers can gate on its api-version.
func buildEngine(manifestPath, handlerDir string) (*catalog.Manifest, *rewrite.Engine, error) {
	if manifestPath == "" {
		return nil, nil, errors.WrapInvalidConfig("no manifest: pass --manifest or set RETREAD_MANIFEST")
	}

	manifest, err := catalog.LoadManifest(manifestPath)
	if err != nil {
		return nil, nil, err
	}
	cat, err := manifest.Catalog()
	if err != nil {
		return nil, nil, err
	}
	redirects, err := manifest.ParsedRedirects()
	if err != nil {
		return nil, nil, err
	}

	globals := rewrite.NewGlobalRedirects(cat)
	funcs := rewrite.NewFuncRedirects(cat)
	for _, r := range redirects {
		before := globals.Len() + funcs.Len()
		switch r.Kind {
		case catalog.RedirectGlobal:
			err = globals.Map(r.From.Module, r.From.Name, r.To.Module, r.To.Name)
		case catalog.RedirectFunc:
			err = funcs.Map(r.From.Module, r.From.Name, r.To.Module, r.To.Name)
		}
		if err != nil {
			return nil, nil, err
		}
		// A later manifest entry may override an earlier one for the same
		// retired symbol; last write wins.
		if globals.Len()+funcs.Len() == before {
			logger.Logger.Debug("redirect overridden",
				"kind", string(r.Kind),
				"from", r.From.String(),
				"to", r.To.String())
		}
	}

	var handlers []rewrite.Handler
	if globals.Len() > 0 {
		handlers = append(handlers, globals.Build())
	}
	if funcs.Len() > 0 {
		handlers = append(handlers, funcs.Build())
	}

	if handlerDir != "" {
		pl := handlerplugin.NewLoader()
		if err := pl.LoadDir(handlerDir); err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, pl.Handlers()...)
	}

	return manifest, rewrite.NewEngine(handlers...), nil
}
