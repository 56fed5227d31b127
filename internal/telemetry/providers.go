package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/heda-org/heda-gitops/internal/logger"
)

// metricsPushInterval is how often OTLP metrics are exported
const metricsPushInterval = 60 * time.Second

// exportSettings is what the tracer and meter providers have in common
type exportSettings struct {
	endpoint string
	insecure bool
	resource *resource.Resource
}

func newExportSettings(ctx context.Context, cfg *Config, version string, extra []attribute.KeyValue) (*exportSettings, error) {
	attrs := append([]attribute.KeyValue{
		semconv.ServiceName(cfg.serviceName()),
		semconv.ServiceVersion(version),
	}, extra...)

	// resource.New rather than resource.Merge(resource.Default(), ...) keeps
	// the schema URL of the semconv package from clashing with the SDK default
	res, err := resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if cfg.Insecure {
		logger.Warnf("Telemetry to %s is sent over plain HTTP", cfg.endpoint())
	}
	return &exportSettings{
		endpoint: cfg.endpoint(),
		insecure: cfg.Insecure,
		resource: res,
	}, nil
}

// newTracerProvider exports spans over OTLP/HTTP and installs the provider and
// the W3C propagators globally
func newTracerProvider(ctx context.Context, s *exportSettings, tc *TracingConfig) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(s.endpoint)}
	if s.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	// Child spans follow the caller's decision so a sampled request keeps
	// its pipeline steps
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(s.resource),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(tc.GetSampling()))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Infof("Tracing to %s (sampling %.2f)", s.endpoint, tc.GetSampling())
	return tp, nil
}

// newMeterProvider exports metrics over OTLP/HTTP, or registers them with reg
// for the Prometheus scrape handler
func newMeterProvider(
	ctx context.Context, s *exportSettings, mc *MetricsConfig, reg prometheus.Registerer,
) (*sdkmetric.MeterProvider, error) {
	var reader sdkmetric.Reader
	switch mc.GetExporter() {
	case ExporterPrometheus:
		exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		reader = exporter
		logger.Info("Metrics served on /metrics")
	default:
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(s.endpoint)}
		if s.insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(metricsPushInterval))
		logger.Infof("Metrics pushed to %s every %s", s.endpoint, metricsPushInterval)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(s.resource),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}
