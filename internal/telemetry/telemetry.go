package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/heda-org/heda-gitops/internal/logger"
)

// Telemetry owns the tracer and meter providers of the process
type Telemetry struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	metricsHandler http.Handler
	shutdowns      []func(context.Context) error
}

// Option configures New
type Option func(*options)

type options struct {
	config     *Config
	version    string
	attributes []attribute.KeyValue
}

// WithTelemetryConfig sets the telemetry configuration. Nil disables telemetry.
func WithTelemetryConfig(cfg *Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

// WithServiceVersion sets the version reported when the config does not override it
func WithServiceVersion(version string) Option {
	return func(o *options) {
		o.version = version
	}
}

// WithResourceAttributes adds attributes to every exported span and metric
func WithResourceAttributes(attrs ...attribute.KeyValue) Option {
	return func(o *options) {
		o.attributes = append(o.attributes, attrs...)
	}
}

// New builds the providers described by the configuration. Parts that are
// disabled get no-op providers, so callers never need nil checks.
// Shutdown must be called on exit to flush pending data.
func New(ctx context.Context, opts ...Option) (*Telemetry, error) {
	o := &options{version: "unknown"}
	for _, opt := range opts {
		opt(o)
	}
	cfg := o.config

	t := &Telemetry{
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	if cfg == nil || !cfg.Enabled {
		logger.Debug("Telemetry disabled")
		return t, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry configuration: %w", err)
	}

	version := o.version
	if cfg.ServiceVersion != "" {
		version = cfg.ServiceVersion
	}
	settings, err := newExportSettings(ctx, cfg, version, o.attributes)
	if err != nil {
		return nil, err
	}

	if cfg.tracingEnabled() {
		tp, err := newTracerProvider(ctx, settings, cfg.Tracing)
		if err != nil {
			return nil, err
		}
		t.tracerProvider = tp
		t.shutdowns = append(t.shutdowns, tp.Shutdown)
	}

	if cfg.metricsEnabled() {
		var reg *prometheus.Registry
		if cfg.Metrics.GetExporter() == ExporterPrometheus {
			reg = prometheus.NewRegistry()
			t.metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		}
		mp, err := newMeterProvider(ctx, settings, cfg.Metrics, reg)
		if err != nil {
			// release the tracer already started
			_ = t.Shutdown(ctx)
			return nil, err
		}
		t.meterProvider = mp
		t.shutdowns = append(t.shutdowns, mp.Shutdown)
	}

	logger.Infof("Telemetry initialized for %s %s", cfg.serviceName(), version)
	return t, nil
}

// TracerProvider returns the tracer provider, a no-op one when tracing is off
func (t *Telemetry) TracerProvider() trace.TracerProvider {
	return t.tracerProvider
}

// MeterProvider returns the meter provider, a no-op one when metrics are off
func (t *Telemetry) MeterProvider() metric.MeterProvider {
	return t.meterProvider
}

// MetricsHandler returns the Prometheus scrape handler, or nil when metrics
// are not exported through Prometheus
func (t *Telemetry) MetricsHandler() http.Handler {
	return t.metricsHandler
}

// Shutdown flushes and stops the providers. Later calls are no-ops.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	shutdowns := t.shutdowns
	t.shutdowns = nil

	var errs []error
	for _, shutdown := range shutdowns {
		if err := shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to shut down telemetry: %w", err)
	}
	return nil
}
