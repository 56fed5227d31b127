// Package auth authenticates API callers. In oauth mode it validates the
// identity provider's RS256 access tokens, maps the "sub" claim to a
// provider and user id, and resolves the caller's GitHub login through the
// userinfo endpoint. In shared-secret mode it trusts a static API key and
// an explicit username header.
package auth

//go:generate mockgen -destination=mocks/mock_middleware.go -package=mocks -source=middleware.go

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/heda-org/heda-gitops/internal/idp"
)

const (
	// HeaderAPIKey carries the shared secret in shared-secret mode
	HeaderAPIKey = "X-API-Key"
	// HeaderGitHubUsername names the caller in shared-secret mode
	HeaderGitHubUsername = "X-GitHub-Username"

	defaultRealm = "heda-gitops"

	// RFC 6750 Section 3 error codes
	errorCodeInvalidRequest = "invalid_request"
	errorCodeInvalidToken   = "invalid_token"
)

// UserInfoResolver looks up the profile behind an access token
type UserInfoResolver interface {
	UserInfo(ctx context.Context, accessToken string) (*idp.UserInfo, error)
}

// BearerMiddleware authenticates requests carrying an identity provider access token
type BearerMiddleware struct {
	verifier         TokenVerifier
	userInfo         UserInfoResolver
	expectedProvider string
	realm            string
}

// NewBearerMiddleware returns middleware accepting only subjects from expectedProvider
func NewBearerMiddleware(verifier TokenVerifier, userInfo UserInfoResolver, expectedProvider string) *BearerMiddleware {
	return &BearerMiddleware{
		verifier:         verifier,
		userInfo:         userInfo,
		expectedProvider: expectedProvider,
		realm:            defaultRealm,
	}
}

// Middleware returns an HTTP middleware function that performs authentication
func (m *BearerMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			m.writeError(w, http.StatusUnauthorized, errorCodeInvalidRequest, "Invalid Authorization header")
			return
		}

		claims, err := m.verifier.Verify(r.Context(), token)
		if err != nil {
			slog.Warn("Token validation failed",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path)
			status, detail := verificationFailure(err)
			m.writeError(w, status, errorCodeInvalidToken, detail)
			return
		}

		sub, _ := claims.GetSubject()
		subject, err := ParseSubject(sub, m.expectedProvider)
		if err != nil {
			status, detail := subjectFailure(err, sub)
			m.writeError(w, status, errorCodeInvalidToken, detail)
			return
		}

		info, err := m.userInfo.UserInfo(r.Context(), token)
		if err != nil {
			slog.Error("Userinfo lookup failed", "error", err, "subject", sub)
			writeDetail(w, http.StatusBadGateway, fmt.Sprintf("Failed to resolve user profile: %v", err))
			return
		}

		slog.Debug("Authentication successful",
			"subject", sub,
			"username", info.Nickname,
			"path", r.URL.Path)

		ctx := WithIdentity(r.Context(), &Identity{
			Subject:     sub,
			Provider:    subject.Provider,
			UserID:      subject.UserID,
			Username:    info.Nickname,
			AccessToken: token,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func verificationFailure(err error) (int, string) {
	switch {
	case errors.Is(err, ErrKeySetUnavailable):
		return http.StatusServiceUnavailable, "Signing keys unavailable"
	case errors.Is(err, ErrInvalidHeader):
		return http.StatusUnauthorized, "Invalid JWT header"
	case errors.Is(err, ErrKeyNotFound):
		return http.StatusUnauthorized, "Public key not found"
	default:
		return http.StatusUnauthorized, "Token verification failed"
	}
}

func subjectFailure(err error, sub string) (int, string) {
	switch {
	case errors.Is(err, ErrMissingSubject):
		return http.StatusUnauthorized, "Token missing 'sub' claim"
	case errors.Is(err, ErrMalformedSubject):
		return http.StatusUnauthorized, "Malformed 'sub' claim"
	case errors.Is(err, ErrUnsupportedProvider):
		provider, _, _ := strings.Cut(sub, "|")
		return http.StatusForbidden, "Unsupported identity provider: " + provider
	default:
		return http.StatusUnauthorized, "Invalid user id"
	}
}

// SharedSecretMiddleware authenticates requests presenting secret in the
// X-API-Key header and takes the caller's login from X-GitHub-Username.
func SharedSecretMiddleware(secret, provider string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderAPIKey)
			if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(secret)) != 1 {
				slog.Warn("Shared secret rejected", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
				writeDetail(w, http.StatusUnauthorized, "Invalid API key")
				return
			}
			username := strings.TrimSpace(r.Header.Get(HeaderGitHubUsername))
			if username == "" {
				writeDetail(w, http.StatusBadRequest, "Missing "+HeaderGitHubUsername+" header")
				return
			}
			ctx := WithIdentity(r.Context(), &Identity{Provider: provider, Username: username})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sanitizeHeaderValue strips CR and LF and escapes quotes for a quoted-string
func sanitizeHeaderValue(s string) string {
	if !strings.ContainsAny(s, "\r\n\"") {
		return s
	}
	s = strings.NewReplacer("\r", "", "\n", "").Replace(s)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// writeError writes the detail body with an RFC 6750 WWW-Authenticate challenge
func (m *BearerMiddleware) writeError(w http.ResponseWriter, status int, errCode, description string) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="%s", error="%s", error_description="%s"`,
		sanitizeHeaderValue(m.realm), errCode, sanitizeHeaderValue(description)))
	writeDetail(w, status, description)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"detail": detail}); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}
