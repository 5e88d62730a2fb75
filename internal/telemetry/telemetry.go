// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

// Package telemetry wires OpenTelemetry tracing for retread. Tracing is
// off unless an OTLP endpoint is configured; every caller goes through
// Tracer so disabled tracing costs a no-op span.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const serviceName = "retread"

// Config holds OpenTelemetry configuration.
type Config struct {
	// Endpoint is the OTLP/HTTP collector address. Empty disables tracing.
	Endpoint string
	// ServiceVersion is stamped on every exported span.
	ServiceVersion string
}

// Init installs the global tracer provider. The returned function flushes
// and shuts the provider down; it is safe to call even when tracing is
// disabled.
func Init(ctx context.Context, config Config) (func(), error) {
	if config.Endpoint == "" {
		return func() {}, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(config.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	serviceVersion := config.ServiceVersion
	if serviceVersion == "" {
		serviceVersion = "dev"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	)

	otel.SetTracerProvider(tp)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}, nil
}

// Tracer returns the tracer all retread packages share.
func Tracer() oteltrace.Tracer {
	return otel.Tracer(serviceName)
}
