// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

// Package daemon exposes the rewrite pass as a JSON-RPC service, for host
// processes that retrofit plugin modules on the fly instead of batching a
// directory. Modules travel base64-encoded in both directions.
package daemon

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	goversion "github.com/hashicorp/go-version"
	"go.opentelemetry.io/otel/attribute"

	"github.com/retreadlabs/retread/internal/errors"
	"github.com/retreadlabs/retread/internal/logger"
	"github.com/retreadlabs/retread/internal/rewrite"
	"github.com/retreadlabs/retread/internal/telemetry"
	"github.com/retreadlabs/retread/internal/wasm"
)

// Server answers Retread.Scan and Retread.Apply JSON-RPC calls.
type Server struct {
	engine    *rewrite.Engine
	hostABI   *goversion.Version
	authToken string
}

// Config holds daemon configuration.
type Config struct {
	// AuthToken, when set, is required as a bearer token on every call.
	AuthToken string
	// Engine performs the rewrites.
	Engine *rewrite.Engine
	// HostABI is the catalog's api-version; modules claiming a newer one
	// are refused. Empty disables the gate.
	HostABI string
}

// ScanRequest carries a base64-encoded module to inspect.
type ScanRequest struct {
	Module string `json:"module"`
}

// ScanResponse reports what a rewrite pass would change.
type ScanResponse struct {
	Visited   int      `json:"visited"`
	Rewritten int      `json:"rewritten"`
	Phrases   []string `json:"phrases"`
	Changed   bool     `json:"changed"`
}

// ApplyRequest carries a base64-encoded module to rewrite.
type ApplyRequest struct {
	Module string `json:"module"`
}

// ApplyResponse returns the retrofitted module. When nothing needed
// rewriting, Module echoes the input bytes unchanged.
type ApplyResponse struct {
	Module    string   `json:"module"`
	Visited   int      `json:"visited"`
	Rewritten int      `json:"rewritten"`
	Phrases   []string `json:"phrases"`
	Changed   bool     `json:"changed"`
}

// NewServer creates a daemon server around a configured engine.
func NewServer(config Config) (*Server, error) {
	if config.Engine == nil {
		return nil, errors.WrapInvalidConfig("daemon: no engine")
	}

	s := &Server{
		engine:    config.Engine,
		authToken: config.AuthToken,
	}
	if config.HostABI != "" {
		v, err := goversion.NewVersion(config.HostABI)
		if err != nil {
			return nil, errors.WrapBadManifest(fmt.Sprintf("api-version %q: %v", config.HostABI, err))
		}
		s.hostABI = v
	}
	return s, nil
}

// authenticate validates the authorization token.
func (s *Server) authenticate(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	auth := r.Header.Get("Authorization")
	if auth == "" {
		return false
	}
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ") == s.authToken
	}
	return auth == s.authToken
}

// decodeModule unpacks a base64 request payload and gates the ABI.
func (s *Server) decodeModule(payload string) ([]byte, *wasm.Module, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("module payload: %w", err)
	}
	m, err := wasm.Decode(data)
	if err != nil {
		return nil, nil, err
	}
	if s.hostABI != nil {
		if abi, ok := m.ABIVersion(); ok {
			v, err := goversion.NewVersion(abi)
			if err != nil || v.GreaterThan(s.hostABI) {
				return nil, nil, errors.WrapABIIncompatible(abi, s.hostABI.Original())
			}
		}
	}
	return data, m, nil
}

// Scan rewrites a module in memory and reports what would change,
// discarding the result.
func (s *Server) Scan(r *http.Request, req *ScanRequest, resp *ScanResponse) error {
	if !s.authenticate(r) {
		return fmt.Errorf("unauthorized")
	}

	tracer := telemetry.Tracer()
	_, span := tracer.Start(r.Context(), "rpc_scan")
	span.SetAttributes(attribute.Int("module.payload_size", len(req.Module)))
	defer span.End()

	_, m, err := s.decodeModule(req.Module)
	if err != nil {
		span.RecordError(err)
		return err
	}

	report, err := s.engine.RewriteModule(m)
	if err != nil {
		span.RecordError(err)
		return err
	}

	*resp = ScanResponse{
		Visited:   report.Visited,
		Rewritten: report.Rewritten,
		Phrases:   report.Phrases,
		Changed:   report.Any(),
	}
	logger.Logger.Info("rpc scan served", "visited", report.Visited, "rewritten", report.Rewritten)
	return nil
}

// Apply rewrites a module and returns the retrofitted bytes.
func (s *Server) Apply(r *http.Request, req *ApplyRequest, resp *ApplyResponse) error {
	if !s.authenticate(r) {
		return fmt.Errorf("unauthorized")
	}

	tracer := telemetry.Tracer()
	_, span := tracer.Start(r.Context(), "rpc_apply")
	span.SetAttributes(attribute.Int("module.payload_size", len(req.Module)))
	defer span.End()

	data, m, err := s.decodeModule(req.Module)
	if err != nil {
		span.RecordError(err)
		return err
	}

	report, err := s.engine.RewriteModule(m)
	if err != nil {
		span.RecordError(err)
		return err
	}

	out := data
	if report.Any() {
		encoded, err := m.Encode()
		if err != nil {
			span.RecordError(err)
			return err
		}
		out = encoded
	}

	*resp = ApplyResponse{
		Module:    base64.StdEncoding.EncodeToString(out),
		Visited:   report.Visited,
		Rewritten: report.Rewritten,
		Phrases:   report.Phrases,
		Changed:   report.Any(),
	}
	logger.Logger.Info("rpc apply served", "visited", report.Visited, "rewritten", report.Rewritten)
	return nil
}

// Handler builds the HTTP handler serving /rpc and /healthz.
func (s *Server) Handler() (http.Handler, error) {
	rpcServer := rpc.NewServer()
	rpcServer.RegisterCodec(json2.NewCodec(), "application/json")
	rpcServer.RegisterCodec(json2.NewCodec(), "application/json;charset=UTF-8")

	if err := rpcServer.RegisterService(s, "Retread"); err != nil {
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/rpc", rpcServer)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	return mux, nil
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	logger.Logger.Info("starting json-rpc daemon", "addr", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Logger.Info("shutting down json-rpc daemon")
	return srv.Shutdown(context.Background())
}
