package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// PipelineMetricsMeterName is the name used for the publication and provisioning meter
	PipelineMetricsMeterName = "github.com/heda-org/heda-gitops/pipeline"

	// OnboardingMetricsMeterName is the name used for the onboarding meter
	OnboardingMetricsMeterName = "github.com/heda-org/heda-gitops/onboarding"

	// MergeMetricsMeterName is the name used for the webhook auto-merge meter
	MergeMetricsMeterName = "github.com/heda-org/heda-gitops/merge"
)

var pipelineBuckets = []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300}

// PipelineMetrics holds the instruments for the provision and publish pipelines
type PipelineMetrics struct {
	publishDuration   metric.Float64Histogram
	provisionDuration metric.Float64Histogram
}

// NewPipelineMetrics creates a new PipelineMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewPipelineMetrics(provider metric.MeterProvider) (*PipelineMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(PipelineMetricsMeterName)

	publishDuration, err := meter.Float64Histogram(
		"heda_gitops_publish_duration_seconds",
		metric.WithDescription("Duration of experiment publications in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(pipelineBuckets...),
	)
	if err != nil {
		return nil, err
	}

	provisionDuration, err := meter.Float64Histogram(
		"heda_gitops_provision_duration_seconds",
		metric.WithDescription("Duration of GitOps repository provisioning in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(pipelineBuckets...),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		publishDuration:   publishDuration,
		provisionDuration: provisionDuration,
	}, nil
}

// RecordPublish records the duration of a publication
func (m *PipelineMetrics) RecordPublish(ctx context.Context, duration time.Duration, success bool) {
	if m == nil || m.publishDuration == nil {
		return
	}
	m.publishDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordProvision records the duration of a repository provisioning
func (m *PipelineMetrics) RecordProvision(ctx context.Context, duration time.Duration, success bool) {
	if m == nil || m.provisionDuration == nil {
		return
	}
	m.provisionDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.Bool("success", success)))
}

// OnboardingMetrics holds the instruments for the onboarding gate
type OnboardingMetrics struct {
	invitations metric.Int64Counter
}

// NewOnboardingMetrics creates a new OnboardingMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewOnboardingMetrics(provider metric.MeterProvider) (*OnboardingMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	invitations, err := provider.Meter(OnboardingMetricsMeterName).Int64Counter(
		"heda_gitops_onboarding_invitations_total",
		metric.WithDescription("Onboarding requests by result"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &OnboardingMetrics{invitations: invitations}, nil
}

// RecordInvitation counts an onboarding request. Typical results are
// "invited", "already_initiated", "user_not_found" and "failed".
func (m *OnboardingMetrics) RecordInvitation(ctx context.Context, result string) {
	if m == nil || m.invitations == nil {
		return
	}
	m.invitations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// MergeMetrics holds the instruments for the webhook auto-merge flow
type MergeMetrics struct {
	merges metric.Int64Counter
}

// NewMergeMetrics creates a new MergeMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewMergeMetrics(provider metric.MeterProvider) (*MergeMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	merges, err := provider.Meter(MergeMetricsMeterName).Int64Counter(
		"heda_gitops_merges_total",
		metric.WithDescription("Handled check run events by outcome"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return &MergeMetrics{merges: merges}, nil
}

// RecordOutcome counts a handled check run event
func (m *MergeMetrics) RecordOutcome(ctx context.Context, outcome string) {
	if m == nil || m.merges == nil {
		return
	}
	m.merges.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
