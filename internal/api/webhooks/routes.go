// Package webhooks receives GitHub App webhook deliveries.
package webhooks

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heda-org/heda-gitops/internal/api/common"
	"github.com/heda-org/heda-gitops/internal/logger"
	"github.com/heda-org/heda-gitops/internal/merge"
	"github.com/heda-org/heda-gitops/internal/webhook"
)

// Event names handled by the receiver
const (
	EventPing     = "ping"
	EventCheckRun = "check_run"
)

// maxPayloadBytes is the largest delivery GitHub sends
const maxPayloadBytes = 25 << 20

// Routes handles webhook deliveries
type Routes struct {
	secret []byte
	merger merge.Service
}

// NewRoutes creates a new Routes instance verifying deliveries with secret
func NewRoutes(secret []byte, merger merge.Service) *Routes {
	return &Routes{secret: secret, merger: merger}
}

// Router creates the router for POST /webhooks/github
func Router(secret []byte, merger merge.Service) http.Handler {
	r := chi.NewRouter()
	Register(r, secret, merger)
	return r
}

// Register adds POST /webhooks/github to r
func Register(r chi.Router, secret []byte, merger merge.Service) {
	routes := NewRoutes(secret, merger)
	r.Post("/webhooks/github", routes.github)
}

// github handles POST /webhooks/github. Only signed deliveries are read;
// check_run events go to the merger and every other event is acknowledged.
func (routes *Routes) github(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		common.WriteErrorResponse(w, "Failed to read payload", http.StatusBadRequest)
		return
	}

	delivery := r.Header.Get(webhook.DeliveryHeader)
	if err := webhook.VerifySignature(routes.secret, payload, r.Header.Get(webhook.SignatureHeader)); err != nil {
		logger.Warnf("Rejected webhook delivery %s: %v", delivery, err)
		common.WriteErrorResponse(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	event := r.Header.Get(webhook.EventHeader)
	switch event {
	case EventPing:
		common.WriteJSONResponse(w, common.MessageResponse{Message: "pong"}, http.StatusOK)
	case EventCheckRun:
		result, err := routes.merger.HandleCheckRun(r.Context(), payload)
		if err != nil {
			if errors.Is(err, merge.ErrInvalidPayload) {
				common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
				return
			}
			logger.Errorf("Failed to handle check_run delivery %s: %v", delivery, err)
			common.WriteErrorResponse(w, err.Error(), http.StatusInternalServerError)
			return
		}
		logger.Debugf("check_run delivery %s: %s", delivery, result.Outcome)
		common.WriteJSONResponse(w, result, http.StatusOK)
	default:
		common.WriteJSONResponse(w, merge.Result{
			Outcome: merge.OutcomeIgnored,
			Reason:  "event " + event,
		}, http.StatusOK)
	}
}
