// Package api assembles the HEDA GitOps REST API.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/heda-org/heda-gitops/internal/api/common"
	"github.com/heda-org/heda-gitops/internal/api/experiments"
	"github.com/heda-org/heda-gitops/internal/api/onboard"
	"github.com/heda-org/heda-gitops/internal/api/system"
	"github.com/heda-org/heda-gitops/internal/api/webhooks"
	"github.com/heda-org/heda-gitops/internal/logger"
	"github.com/heda-org/heda-gitops/internal/merge"
	"github.com/heda-org/heda-gitops/internal/onboarding"
	"github.com/heda-org/heda-gitops/internal/provision"
	"github.com/heda-org/heda-gitops/internal/publish"
)

// Services are the pipelines served by the API
type Services struct {
	Provision  provision.Service
	Publish    publish.Service
	Onboarding onboarding.Service
}

// ServerOption configures the API server
type ServerOption func(*serverConfig)

// serverConfig holds the server configuration
type serverConfig struct {
	middlewares    []func(http.Handler) http.Handler
	readiness      system.ReadinessChecker
	metricsHandler http.Handler
	webhookSecret  []byte
	merger         merge.Service
	experimentOpts []experiments.RouterOption
}

// WithMiddlewares adds middleware to the server
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithReadinessChecker sets the check behind GET /readiness
func WithReadinessChecker(checker system.ReadinessChecker) ServerOption {
	return func(cfg *serverConfig) {
		cfg.readiness = checker
	}
}

// WithMetricsHandler serves h on GET /metrics
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.metricsHandler = h
	}
}

// WithWebhook mounts POST /webhooks/github, verified with secret and
// dispatched to merger
func WithWebhook(secret []byte, merger merge.Service) ServerOption {
	return func(cfg *serverConfig) {
		cfg.webhookSecret = secret
		cfg.merger = merger
	}
}

// WithExperimentOptions configures the /init and /publish router
func WithExperimentOptions(opts ...experiments.RouterOption) ServerOption {
	return func(cfg *serverConfig) {
		cfg.experimentOpts = append(cfg.experimentOpts, opts...)
	}
}

// NewServer creates and configures the HTTP router with the given services and options
func NewServer(svcs Services, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		common.WriteErrorResponse(w, "Not Found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		common.WriteErrorResponse(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})

	system.Register(r, cfg.readiness)
	if cfg.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.metricsHandler)
	}
	if cfg.merger != nil {
		webhooks.Register(r, cfg.webhookSecret, cfg.merger)
	}

	experiments.Register(r, svcs.Provision, svcs.Publish, cfg.experimentOpts...)
	onboard.Register(r, svcs.Onboarding)

	return r
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Debugf("HTTP %s %s %d %s %s",
			r.Method,
			r.URL.Path,
			ww.Status(),
			time.Since(start),
			middleware.GetReqID(r.Context()),
		)
	})
}
