// Package common provides shared HTTP utility functions for API handlers.
package common

import (
	"encoding/json"
	"net/http"

	"github.com/heda-org/heda-gitops/internal/auth"
	"github.com/heda-org/heda-gitops/internal/logger"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// MessageResponse is the body of operations that only report a message
type MessageResponse struct {
	Message string `json:"message"`
}

// WriteJSONResponse writes a JSON response with the given data
func WriteJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("Failed to encode JSON response: %v", err)
	}
}

// WriteErrorResponse writes a {"detail": message} error response
func WriteErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	WriteJSONResponse(w, ErrorResponse{Detail: message}, statusCode)
}

// WriteError maps err to a status code and detail and writes it
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("%s %s failed: %v", r.Method, r.URL.Path, err)
	} else {
		logger.Debugf("%s %s rejected: %v", r.Method, r.URL.Path, err)
	}
	WriteErrorResponse(w, detail, status)
}

// RequireIdentity returns the authenticated caller, writing a 401 and
// returning false when the request carries none
func RequireIdentity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok || id.Username == "" {
		WriteErrorResponse(w, "Not authenticated", http.StatusUnauthorized)
		return nil, false
	}
	return id, true
}
