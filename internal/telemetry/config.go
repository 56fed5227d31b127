// Package telemetry wires OpenTelemetry into the GitOps backend: HTTP request
// metrics and spans, plus the pipeline, onboarding and merge instruments.
// Traces leave the process over OTLP; metrics go either to OTLP or to a
// Prometheus scrape handler served on /metrics.
package telemetry

import (
	"errors"
	"fmt"
)

const (
	// DefaultServiceName identifies the backend when serviceName is unset
	DefaultServiceName = "heda-gitops-api"

	// DefaultEndpoint is the OTLP/HTTP collector address
	DefaultEndpoint = "localhost:4318"

	// DefaultSampling is the trace ratio used when sampling is unset
	DefaultSampling = 0.05

	// ExporterOTLP pushes metrics to the collector
	ExporterOTLP = "otlp"

	// ExporterPrometheus serves metrics for scraping
	ExporterPrometheus = "prometheus"
)

// Config is the telemetry block of the server configuration
type Config struct {
	// Enabled switches all telemetry on. Tracing and Metrics still need
	// their own Enabled flags.
	Enabled bool `yaml:"enabled"`

	ServiceName string `yaml:"serviceName,omitempty"`

	// ServiceVersion overrides the build version reported by the resource
	ServiceVersion string `yaml:"serviceVersion,omitempty"`

	// Endpoint is the collector host:port; /v1/traces and /v1/metrics are appended
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure sends telemetry over plain HTTP
	Insecure bool `yaml:"insecure,omitempty"`

	Tracing *TracingConfig `yaml:"tracing,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig controls span export
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`

	// Sampling is the ratio of root traces kept, 0 < s <= 1.
	// Zero means DefaultSampling since YAML cannot tell unset from 0.
	Sampling float64 `yaml:"sampling,omitempty"`
}

// MetricsConfig controls metric export
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`

	// Exporter is "otlp" (default) or "prometheus"
	Exporter string `yaml:"exporter,omitempty"`
}

func (c *Config) tracingEnabled() bool {
	return c != nil && c.Enabled && c.Tracing != nil && c.Tracing.Enabled
}

func (c *Config) metricsEnabled() bool {
	return c != nil && c.Enabled && c.Metrics != nil && c.Metrics.Enabled
}

// serviceName returns the configured name or DefaultServiceName
func (c *Config) serviceName() string {
	if c == nil || c.ServiceName == "" {
		return DefaultServiceName
	}
	return c.ServiceName
}

// endpoint returns the configured collector or DefaultEndpoint
func (c *Config) endpoint() string {
	if c == nil || c.Endpoint == "" {
		return DefaultEndpoint
	}
	return c.Endpoint
}

// GetSampling returns the sampling ratio, DefaultSampling when unset
func (c *TracingConfig) GetSampling() float64 {
	if c == nil || c.Sampling == 0 {
		return DefaultSampling
	}
	return c.Sampling
}

// GetExporter returns the metrics exporter, ExporterOTLP when unset
func (c *MetricsConfig) GetExporter() string {
	if c == nil || c.Exporter == "" {
		return ExporterOTLP
	}
	return c.Exporter
}

// Validate reports configuration errors. Disabled sections are not checked.
func (c *Config) Validate() error {
	if c == nil || !c.Enabled {
		return nil
	}

	var errs []error
	if c.tracingEnabled() {
		if s := c.Tracing.Sampling; s < 0 || s > 1 {
			errs = append(errs, fmt.Errorf("tracing: sampling must be between 0.0 and 1.0, got %f", s))
		}
	}
	if c.metricsEnabled() {
		switch c.Metrics.GetExporter() {
		case ExporterOTLP, ExporterPrometheus:
		default:
			errs = append(errs, fmt.Errorf("metrics: exporter must be %q or %q, got %q",
				ExporterOTLP, ExporterPrometheus, c.Metrics.Exporter))
		}
	}
	return errors.Join(errs...)
}
