// Package system provides the unauthenticated health, readiness and
// version endpoints.
package system

//go:generate mockgen -destination=mocks/mock_routes.go -package=mocks -source=routes.go

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heda-org/heda-gitops/internal/api/common"
	"github.com/heda-org/heda-gitops/internal/logger"
	"github.com/heda-org/heda-gitops/pkg/versions"
)

// ReadinessChecker reports whether the server can serve requests
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// Router creates a router for health, readiness and version endpoints.
// A nil checker reports ready.
func Router(checker ReadinessChecker) http.Handler {
	r := chi.NewRouter()
	Register(r, checker)
	return r
}

// Register adds GET /health, /readiness and /version to r
func Register(r chi.Router, checker ReadinessChecker) {
	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(checker))
	r.Get("/version", versionHandler)
}

// healthHandler handles GET /health
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

// readinessHandler handles GET /readiness
func readinessHandler(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.CheckReadiness(r.Context()); err != nil {
				logger.Warnf("Readiness check failed: %v", err)
				common.WriteErrorResponse(w, "Not ready: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		common.WriteJSONResponse(w, HealthResponse{Status: "ready"}, http.StatusOK)
	}
}

// versionHandler handles GET /version
func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}
