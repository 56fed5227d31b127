// Package otel provides span helpers shared by the pipeline packages.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys recorded on pipeline spans.
const (
	AttrUsername       = attribute.Key("heda.username")
	AttrExperiment     = attribute.Key("heda.experiment")
	AttrRepository     = attribute.Key("heda.repository")
	AttrBranch         = attribute.Key("heda.branch")
	AttrProposalHash   = attribute.Key("heda.proposal_hash")
	AttrFileCount      = attribute.Key("heda.file_count")
	AttrPullRequest    = attribute.Key("heda.pull_request")
	AttrInstallationID = attribute.Key("github.installation_id")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns a no-op span.
// This provides graceful degradation when tracing is disabled.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		// a span from an empty context is a no-op, so ending it leaves any
		// parent span in ctx untouched
		return ctx, trace.SpanFromContext(context.Background())
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records an error on a span and sets the span status to error.
// It safely handles nil spans and nil errors.
// The status description stays generic because git errors can carry remote
// URLs; the full error is kept in the span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
