// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// ServiceName identifies this program in exported telemetry.
const ServiceName = "compllama"

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config controls telemetry export.
type Config struct {
	// Enabled turns export on. When false Init returns a no-op provider.
	Enabled bool

	// Dir holds the export files (default: current directory)
	Dir string

	// TracesFile and MetricsFile are file names inside Dir
	// (defaults: traces.log, metrics.log)
	TracesFile  string
	MetricsFile string

	// MetricsInterval is the periodic export interval (default: 10s)
	MetricsInterval time.Duration

	// Version is reported as the service version.
	Version string
}

// DefaultConfig returns the default telemetry configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		TracesFile:      "traces.log",
		MetricsFile:     "metrics.log",
		MetricsInterval: 10 * time.Second,
		Version:         "dev",
	}
}

// =============================================================================
// PROVIDER
// =============================================================================

// Provider owns the tracer and meter used for stream telemetry.
type Provider struct {
	tracer  trace.Tracer
	metrics *StreamMetrics

	shutdowns []func(context.Context) error
	closers   []io.Closer
}

// Init builds a provider that exports into rotated files under cfg.Dir.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return Noop(), nil
	}

	defaults := DefaultConfig()
	if cfg.TracesFile == "" {
		cfg.TracesFile = defaults.TracesFile
	}
	if cfg.MetricsFile == "" {
		cfg.MetricsFile = defaults.MetricsFile
	}
	if cfg.MetricsInterval <= 0 {
		cfg.MetricsInterval = defaults.MetricsInterval
	}
	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create telemetry directory: %w", err)
		}
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceFile := rotatedFile(filepath.Join(cfg.Dir, cfg.TracesFile))
	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(traceFile))
	if err != nil {
		traceFile.Close()
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)

	metricsFile := rotatedFile(filepath.Join(cfg.Dir, cfg.MetricsFile))
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(metricsFile))
	if err != nil {
		_ = tp.Shutdown(ctx)
		traceFile.Close()
		metricsFile.Close()
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(cfg.MetricsInterval))),
		sdkmetric.WithResource(res),
	)

	p, err := newProvider(tp, mp)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		traceFile.Close()
		metricsFile.Close()
		return nil, err
	}
	p.shutdowns = []func(context.Context) error{tp.Shutdown, mp.Shutdown}
	p.closers = []io.Closer{traceFile, metricsFile}
	return p, nil
}

// Noop returns a provider that records nothing.
func Noop() *Provider {
	p, err := newProvider(tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	if err != nil {
		// Noop instruments cannot fail to register.
		panic(err)
	}
	return p
}

var noopProvider = Noop()

// New builds a provider on caller-supplied tracer and meter providers.
// The caller owns their shutdown.
func New(tp trace.TracerProvider, mp metric.MeterProvider) (*Provider, error) {
	return newProvider(tp, mp)
}

func newProvider(tp trace.TracerProvider, mp metric.MeterProvider) (*Provider, error) {
	metrics, err := NewStreamMetrics(mp.Meter(ServiceName))
	if err != nil {
		return nil, err
	}
	return &Provider{
		tracer:  tp.Tracer(ServiceName),
		metrics: metrics,
	}, nil
}

// Metrics returns the shared stream instruments.
func (p *Provider) Metrics() *StreamMetrics {
	if p == nil {
		return noopProvider.metrics
	}
	return p.metrics
}

// Shutdown flushes pending telemetry and closes the export files.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	for _, fn := range p.shutdowns {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.shutdowns = nil
	p.closers = nil
	return errors.Join(errs...)
}

func rotatedFile(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}
