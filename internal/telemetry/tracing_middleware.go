package telemetry

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of request spans
const TracerName = "github.com/heda-org/heda-gitops/http"

// TracingMiddleware starts a server span per request, continuing any trace
// propagated by the caller. Pipeline spans started by handlers nest under it.
// A nil provider yields a pass-through middleware.
func TracingMiddleware(provider trace.TracerProvider) func(http.Handler) http.Handler {
	if provider == nil {
		return passThrough
	}
	tracer := provider.Tracer(TracerName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
					semconv.UserAgentOriginal(r.UserAgent()),
				),
			)
			defer span.End()

			out := serve(next, w, r.WithContext(ctx))

			// renamed to the route so /publish spans group regardless of path noise
			span.SetName(r.Method + " " + out.route)
			span.SetAttributes(
				semconv.HTTPRoute(out.route),
				semconv.HTTPResponseStatusCode(out.status),
			)
			if out.status >= http.StatusBadRequest {
				span.SetStatus(codes.Error, http.StatusText(out.status))
				return
			}
			span.SetStatus(codes.Ok, "")
		})
	}
}
