// Package onboard provides the organization onboarding endpoints.
package onboard

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heda-org/heda-gitops/internal/api/common"
	"github.com/heda-org/heda-gitops/internal/onboarding"
)

// StatusResponse is the body returned by GET /onboard/status
type StatusResponse struct {
	Onboarded  bool   `json:"onboarded"`
	Invitation string `json:"invitation"`
}

// Routes handles HTTP requests for onboarding
type Routes struct {
	service onboarding.Service
}

// NewRoutes creates a new Routes instance with the given service
func NewRoutes(svc onboarding.Service) *Routes {
	return &Routes{service: svc}
}

// Router creates the router for POST /onboard and GET /onboard/status
func Router(svc onboarding.Service) http.Handler {
	r := chi.NewRouter()
	Register(r, svc)
	return r
}

// Register adds POST /onboard and GET /onboard/status to r
func Register(r chi.Router, svc onboarding.Service) {
	routes := NewRoutes(svc)
	r.Post("/onboard", routes.onboard)
	r.Get("/onboard/status", routes.status)
}

// onboard handles POST /onboard. Repeated calls are idempotent.
func (routes *Routes) onboard(w http.ResponseWriter, r *http.Request) {
	id, ok := common.RequireIdentity(w, r)
	if !ok {
		return
	}

	result, err := routes.service.Onboard(r.Context(), id.Username)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, common.MessageResponse{Message: result.Message}, http.StatusOK)
}

// status handles GET /onboard/status
func (routes *Routes) status(w http.ResponseWriter, r *http.Request) {
	id, ok := common.RequireIdentity(w, r)
	if !ok {
		return
	}

	result, err := routes.service.Status(r.Context(), id.Username)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, StatusResponse{
		Onboarded:  result.Onboarded,
		Invitation: result.Invitation,
	}, http.StatusOK)
}
