// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

// Package loader runs the retrofit pipeline over a directory of compiled
// plugin modules: decode, ABI gate, rewrite, and output. Modules that
// cannot be processed are moved to quarantine; every outcome is recorded
// in the pass history.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	goversion "github.com/hashicorp/go-version"
	"go.opentelemetry.io/otel/attribute"

	"github.com/retreadlabs/retread/internal/catalog"
	"github.com/retreadlabs/retread/internal/errors"
	"github.com/retreadlabs/retread/internal/history"
	"github.com/retreadlabs/retread/internal/logger"
	"github.com/retreadlabs/retread/internal/quarantine"
	"github.com/retreadlabs/retread/internal/rewrite"
	"github.com/retreadlabs/retread/internal/telemetry"
	"github.com/retreadlabs/retread/internal/wasm"
)

// Options configures a pipeline run.
type Options struct {
	// Dir is the plugin directory to scan.
	Dir string
	// OutputDir receives rewritten modules. Set it to Dir to apply in
	// place. Ignored in DryRun.
	OutputDir string
	// QuarantineDir receives modules that fail decoding or rewriting.
	// Empty disables quarantining; failures are still recorded.
	QuarantineDir string
	// Manifest describes the host API surface and its version.
	Manifest *catalog.Manifest
	// Engine performs the rewrite pass.
	Engine *rewrite.Engine
	// History records pass outcomes. Optional.
	History *history.Store
	// DryRun suppresses all writes to OutputDir.
	DryRun bool
}

// Summary counts per-module outcomes of one pipeline run. Outcomes holds
// the per-module detail in processing order.
type Summary struct {
	Scanned   int
	Clean     int
	Rewritten int
	Failed    int
	Rejected  int
	Outcomes  []history.Entry
}

// Loader retrofits every plugin module under a directory.
type Loader struct {
	opts       Options
	hostABI    *goversion.Version
	quarantine *quarantine.Manager
}

// New validates the options and prepares a pipeline.
func New(opts Options) (*Loader, error) {
	if opts.Dir == "" {
		return nil, errors.WrapInvalidConfig("loader: plugin dir is empty")
	}
	if opts.Manifest == nil {
		return nil, errors.WrapInvalidConfig("loader: no manifest")
	}
	if opts.Engine == nil {
		return nil, errors.WrapInvalidConfig("loader: no engine")
	}
	if !opts.DryRun && opts.OutputDir == "" {
		return nil, errors.WrapInvalidConfig("loader: no output dir")
	}

	hostABI, err := goversion.NewVersion(opts.Manifest.APIVersion)
	if err != nil {
		return nil, errors.WrapBadManifest(fmt.Sprintf("api-version %q: %v", opts.Manifest.APIVersion, err))
	}

	l := &Loader{opts: opts, hostABI: hostABI}
	if opts.QuarantineDir != "" {
		l.quarantine = quarantine.NewManager(opts.QuarantineDir, quarantine.DefaultConfig())
	}
	return l, nil
}

// Run processes every *.wasm file under Dir in filename order, or just the
// named module when Dir points at a single file. Per-module failures do not
// abort the run; only path access and context cancellation do.
func (l *Loader) Run(ctx context.Context) (*Summary, error) {
	info, err := os.Stat(l.opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", l.opts.Dir, err)
	}

	if !l.opts.DryRun {
		if err := os.MkdirAll(l.opts.OutputDir, 0o755); err != nil {
			return nil, fmt.Errorf("output dir: %w", err)
		}
	}

	summary := &Summary{}
	if !info.IsDir() {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Scanned++
		l.runOne(ctx, l.opts.Dir, summary)
	} else {
		entries, err := os.ReadDir(l.opts.Dir)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", l.opts.Dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".wasm") {
				continue
			}
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			summary.Scanned++
			l.runOne(ctx, filepath.Join(l.opts.Dir, entry.Name()), summary)
		}
	}

	logger.Logger.Info("retrofit pass complete",
		"dir", l.opts.Dir,
		"scanned", summary.Scanned,
		"clean", summary.Clean,
		"rewritten", summary.Rewritten,
		"failed", summary.Failed,
		"rejected", summary.Rejected,
	)
	return summary, nil
}

func (l *Loader) runOne(ctx context.Context, path string, summary *Summary) {
	tracer := telemetry.Tracer()
	_, span := tracer.Start(ctx, "retrofit_module")
	span.SetAttributes(attribute.String("module.path", path))
	defer span.End()

	name := filepath.Base(path)

	data, err := os.ReadFile(path)
	if err != nil {
		span.RecordError(err)
		summary.Failed++
		l.record(summary, &history.Entry{Module: name, Status: history.StatusFailed, Detail: err.Error()})
		logger.Logger.Error("cannot read module", "module", name, "error", err)
		return
	}

	m, err := wasm.Decode(data)
	if err != nil {
		span.RecordError(err)
		summary.Failed++
		l.sideline(path)
		l.record(summary, &history.Entry{Module: name, Status: history.StatusFailed, Detail: err.Error()})
		logger.Logger.Error("cannot decode module", "module", name, "error", err)
		return
	}

	abi, hasABI := m.ABIVersion()
	if hasABI {
		span.SetAttributes(attribute.String("module.abi", abi))
		if detail, ok := l.gateABI(abi); !ok {
			summary.Rejected++
			l.record(summary, &history.Entry{Module: name, Status: history.StatusRejected, ABI: abi, Detail: detail})
			logger.Logger.Warn("module rejected", "module", name, "abi", abi, "host", l.hostABI.Original())
			return
		}
	}

	report, err := l.opts.Engine.RewriteModule(m)
	if err != nil {
		span.RecordError(err)
		summary.Failed++
		l.sideline(path)
		l.record(summary, &history.Entry{Module: name, Status: history.StatusFailed, ABI: abi, Detail: err.Error()})
		logger.Logger.Error("rewrite failed", "module", name, "error", err)
		return
	}

	span.SetAttributes(
		attribute.Int("report.visited", report.Visited),
		attribute.Int("report.rewritten", report.Rewritten),
	)

	if !report.Any() {
		summary.Clean++
		l.record(summary, &history.Entry{
			Module: name, Status: history.StatusClean, ABI: abi,
			Visited: report.Visited,
		})
		logger.Logger.Info("module clean", "module", name, "visited", report.Visited)
		return
	}

	if !l.opts.DryRun {
		out, err := m.Encode()
		if err != nil {
			span.RecordError(err)
			summary.Failed++
			l.sideline(path)
			l.record(summary, &history.Entry{Module: name, Status: history.StatusFailed, ABI: abi, Detail: err.Error()})
			logger.Logger.Error("cannot encode module", "module", name, "error", err)
			return
		}
		dest := filepath.Join(l.opts.OutputDir, name)
		if err := os.WriteFile(dest, out, 0o644); err != nil {
			span.RecordError(err)
			summary.Failed++
			l.record(summary, &history.Entry{Module: name, Status: history.StatusFailed, ABI: abi, Detail: err.Error()})
			logger.Logger.Error("cannot write module", "module", name, "dest", dest, "error", err)
			return
		}
	}

	summary.Rewritten++
	l.record(summary, &history.Entry{
		Module: name, Status: history.StatusRewritten, ABI: abi,
		Visited: report.Visited, Rewritten: report.Rewritten,
		Phrases: report.Phrases,
	})
	logger.Logger.Info("module rewritten",
		"module", name,
		"rewritten", report.Rewritten,
		"phrases", report.Phrases,
		"dry_run", l.opts.DryRun,
	)
}

// gateABI rejects modules built against a host API newer than ours. A
// module without a parseable version is rejected too: it claims an ABI we
// cannot reason about.
func (l *Loader) gateABI(abi string) (string, bool) {
	v, err := goversion.NewVersion(abi)
	if err != nil {
		return fmt.Sprintf("unparseable abi version %q", abi), false
	}
	if v.GreaterThan(l.hostABI) {
		return errors.WrapABIIncompatible(abi, l.hostABI.Original()).Error(), false
	}
	return "", true
}

func (l *Loader) sideline(path string) {
	if l.quarantine == nil {
		return
	}
	if _, err := l.quarantine.Add(path); err != nil {
		logger.Logger.Warn("cannot quarantine module", "path", path, "error", err)
	}
}

func (l *Loader) record(summary *Summary, e *history.Entry) {
	summary.Outcomes = append(summary.Outcomes, *e)
	if l.opts.History == nil {
		return
	}
	if err := l.opts.History.Save(e); err != nil {
		logger.Logger.Warn("cannot record pass outcome", "module", e.Module, "error", err)
	}
}
