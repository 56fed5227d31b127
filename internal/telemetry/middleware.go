package telemetry

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetricsMeterName is the instrumentation scope of the HTTP instruments
const HTTPMetricsMeterName = "github.com/heda-org/heda-gitops/http"

// unknownRoute labels requests chi did not match, keeping raw paths out of labels
const unknownRoute = "unknown_route"

// requestBuckets covers quick status calls up to publish requests that clone,
// push and open a pull request within the request timeout
var requestBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// served is the outcome of a request as the middlewares see it
type served struct {
	route  string
	status int
}

// serve runs next with a status-capturing writer and reports the matched
// chi route, which is only known once routing has happened
func serve(next http.Handler, w http.ResponseWriter, r *http.Request) served {
	ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
	next.ServeHTTP(ww, r)

	out := served{route: unknownRoute, status: ww.Status()}
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		out.route = rctx.RoutePattern()
	}
	if out.status == 0 {
		// nothing written means net/http sends 200
		out.status = http.StatusOK
	}
	return out
}

type httpMetrics struct {
	duration metric.Float64Histogram
	total    metric.Int64Counter
	inFlight metric.Int64UpDownCounter
}

func newHTTPMetrics(provider metric.MeterProvider) (*httpMetrics, error) {
	meter := provider.Meter(HTTPMetricsMeterName)

	duration, err := meter.Float64Histogram("heda_gitops_http_request_duration_seconds",
		metric.WithDescription("Duration of HTTP requests"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(requestBuckets...))
	if err != nil {
		return nil, err
	}
	total, err := meter.Int64Counter("heda_gitops_http_requests_total",
		metric.WithDescription("HTTP requests served"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}
	inFlight, err := meter.Int64UpDownCounter("heda_gitops_http_active_requests",
		metric.WithDescription("HTTP requests in flight"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}
	return &httpMetrics{duration: duration, total: total, inFlight: inFlight}, nil
}

func (m *httpMetrics) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// the request context is cancelled once the handler returns
		ctx := context.WithoutCancel(r.Context())
		start := time.Now()

		m.inFlight.Add(ctx, 1)
		out := serve(next, w, r)
		m.inFlight.Add(ctx, -1)

		attrs := metric.WithAttributes(
			attribute.String("method", r.Method),
			attribute.String("route", out.route),
			attribute.String("status_code", strconv.Itoa(out.status)),
		)
		m.duration.Record(ctx, time.Since(start).Seconds(), attrs)
		m.total.Add(ctx, 1, attrs)
	})
}

// MetricsMiddleware records request count, duration and in-flight requests
// labelled by chi route. A nil provider yields a pass-through middleware.
func MetricsMiddleware(provider metric.MeterProvider) (func(http.Handler) http.Handler, error) {
	if provider == nil {
		return passThrough, nil
	}
	m, err := newHTTPMetrics(provider)
	if err != nil {
		return nil, err
	}
	return m.wrap, nil
}

func passThrough(next http.Handler) http.Handler {
	return next
}
