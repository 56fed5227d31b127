package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/heda-org/heda-gitops/internal/auth/mocks"
	"github.com/heda-org/heda-gitops/internal/idp"
)

// newIdentityHandler records the identity the middleware attached
func newIdentityHandler() (http.Handler, **Identity) {
	var seen *Identity
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return handler, &seen
}

func decodeDetail(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body["detail"]
}

func TestBearerMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		authHeader   string
		setupMocks   func(*mocks.MockTokenVerifier, *mocks.MockUserInfoResolver)
		wantStatus   int
		wantDetail   string
		wantUsername string
	}{
		{
			name:       "missing authorization header",
			wantStatus: http.StatusUnauthorized,
			wantDetail: "Invalid Authorization header",
		},
		{
			name:       "basic auth",
			authHeader: "Basic xyz",
			wantStatus: http.StatusUnauthorized,
			wantDetail: "Invalid Authorization header",
		},
		{
			name:       "empty bearer token",
			authHeader: "Bearer ",
			wantStatus: http.StatusUnauthorized,
			wantDetail: "Invalid Authorization header",
		},
		{
			name:       "verification failure",
			authHeader: "Bearer bad",
			setupMocks: func(v *mocks.MockTokenVerifier, _ *mocks.MockUserInfoResolver) {
				v.EXPECT().Verify(gomock.Any(), "bad").Return(nil, fmt.Errorf("%w: expired", ErrTokenVerification))
			},
			wantStatus: http.StatusUnauthorized,
			wantDetail: "Token verification failed",
		},
		{
			name:       "unknown key",
			authHeader: "Bearer rotated",
			setupMocks: func(v *mocks.MockTokenVerifier, _ *mocks.MockUserInfoResolver) {
				v.EXPECT().Verify(gomock.Any(), "rotated").Return(nil, ErrKeyNotFound)
			},
			wantStatus: http.StatusUnauthorized,
			wantDetail: "Public key not found",
		},
		{
			name:       "key set unavailable",
			authHeader: "Bearer tok",
			setupMocks: func(v *mocks.MockTokenVerifier, _ *mocks.MockUserInfoResolver) {
				v.EXPECT().Verify(gomock.Any(), "tok").Return(nil, ErrKeySetUnavailable)
			},
			wantStatus: http.StatusServiceUnavailable,
			wantDetail: "Signing keys unavailable",
		},
		{
			name:       "missing sub",
			authHeader: "Bearer tok",
			setupMocks: func(v *mocks.MockTokenVerifier, _ *mocks.MockUserInfoResolver) {
				v.EXPECT().Verify(gomock.Any(), "tok").Return(jwt.MapClaims{}, nil)
			},
			wantStatus: http.StatusUnauthorized,
			wantDetail: "Token missing 'sub' claim",
		},
		{
			name:       "malformed sub",
			authHeader: "Bearer tok",
			setupMocks: func(v *mocks.MockTokenVerifier, _ *mocks.MockUserInfoResolver) {
				v.EXPECT().Verify(gomock.Any(), "tok").Return(jwt.MapClaims{"sub": "583231"}, nil)
			},
			wantStatus: http.StatusUnauthorized,
			wantDetail: "Malformed 'sub' claim",
		},
		{
			name:       "unsupported provider",
			authHeader: "Bearer tok",
			setupMocks: func(v *mocks.MockTokenVerifier, _ *mocks.MockUserInfoResolver) {
				v.EXPECT().Verify(gomock.Any(), "tok").Return(jwt.MapClaims{"sub": "google-oauth2|1"}, nil)
			},
			wantStatus: http.StatusForbidden,
			wantDetail: "Unsupported identity provider: google-oauth2",
		},
		{
			name:       "empty user id",
			authHeader: "Bearer tok",
			setupMocks: func(v *mocks.MockTokenVerifier, _ *mocks.MockUserInfoResolver) {
				v.EXPECT().Verify(gomock.Any(), "tok").Return(jwt.MapClaims{"sub": "github|"}, nil)
			},
			wantStatus: http.StatusUnauthorized,
			wantDetail: "Invalid user id",
		},
		{
			name:       "userinfo failure",
			authHeader: "Bearer tok",
			setupMocks: func(v *mocks.MockTokenVerifier, u *mocks.MockUserInfoResolver) {
				v.EXPECT().Verify(gomock.Any(), "tok").Return(jwt.MapClaims{"sub": "github|583231"}, nil)
				u.EXPECT().UserInfo(gomock.Any(), "tok").Return(nil, errors.New("HTTP 429"))
			},
			wantStatus: http.StatusBadGateway,
			wantDetail: "Failed to resolve user profile: HTTP 429",
		},
		{
			name:       "authenticated",
			authHeader: "Bearer tok",
			setupMocks: func(v *mocks.MockTokenVerifier, u *mocks.MockUserInfoResolver) {
				v.EXPECT().Verify(gomock.Any(), "tok").Return(jwt.MapClaims{"sub": "github|583231"}, nil)
				u.EXPECT().UserInfo(gomock.Any(), "tok").Return(&idp.UserInfo{Subject: "github|583231", Nickname: "octocat"}, nil)
			},
			wantStatus:   http.StatusOK,
			wantUsername: "octocat",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			verifier := mocks.NewMockTokenVerifier(ctrl)
			userInfo := mocks.NewMockUserInfoResolver(ctrl)
			if tt.setupMocks != nil {
				tt.setupMocks(verifier, userInfo)
			}

			next, seen := newIdentityHandler()
			handler := NewBearerMiddleware(verifier, userInfo, "github").Middleware(next)

			req := httptest.NewRequest(http.MethodPost, "/publish", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus != http.StatusOK {
				assert.Equal(t, tt.wantDetail, decodeDetail(t, rr))
				assert.Nil(t, *seen)
				return
			}
			require.NotNil(t, *seen)
			assert.Equal(t, &Identity{
				Subject:     "github|583231",
				Provider:    "github",
				UserID:      "583231",
				Username:    tt.wantUsername,
				AccessToken: "tok",
			}, *seen)
		})
	}
}

func TestBearerMiddleware_WWWAuthenticate(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	handler := NewBearerMiddleware(mocks.NewMockTokenVerifier(ctrl), mocks.NewMockUserInfoResolver(ctrl), "github").
		Middleware(http.NotFoundHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/init", nil))

	assert.Equal(t, `Bearer realm="heda-gitops", error="invalid_request", error_description="Invalid Authorization header"`,
		rr.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
}

func TestBearerMiddleware_EndToEnd(t *testing.T) {
	t.Parallel()

	ts := newTestJWKSServer(t)
	ctrl := gomock.NewController(t)
	userInfo := mocks.NewMockUserInfoResolver(ctrl)
	userInfo.EXPECT().UserInfo(gomock.Any(), gomock.Any()).Return(&idp.UserInfo{Nickname: "octocat"}, nil)

	verifier := NewVerifier(NewKeySource(ts.jwksURL()), ts.issuer, testAudience)
	next, seen := newIdentityHandler()
	handler := NewBearerMiddleware(verifier, userInfo, "github").Middleware(next)

	req := httptest.NewRequest(http.MethodPost, "/init", nil)
	req.Header.Set("Authorization", "Bearer "+ts.sign(t, ts.validClaims(), testKeyID))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "octocat", (*seen).Username)
	assert.Equal(t, "583231", (*seen).UserID)
}

func TestSharedSecretMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		apiKey     string
		username   string
		wantStatus int
		wantDetail string
	}{
		{name: "valid", apiKey: "s3cret", username: "octocat", wantStatus: http.StatusOK},
		{name: "missing key", username: "octocat", wantStatus: http.StatusUnauthorized, wantDetail: "Invalid API key"},
		{name: "wrong key", apiKey: "guess", username: "octocat", wantStatus: http.StatusUnauthorized, wantDetail: "Invalid API key"},
		{name: "missing username", apiKey: "s3cret", wantStatus: http.StatusBadRequest, wantDetail: "Missing X-GitHub-Username header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			next, seen := newIdentityHandler()
			handler := SharedSecretMiddleware("s3cret", "github")(next)

			req := httptest.NewRequest(http.MethodPost, "/onboard", nil)
			if tt.apiKey != "" {
				req.Header.Set(HeaderAPIKey, tt.apiKey)
			}
			if tt.username != "" {
				req.Header.Set(HeaderGitHubUsername, tt.username)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, decodeDetail(t, rr))
				return
			}
			require.NotNil(t, *seen)
			assert.Equal(t, "octocat", (*seen).Username)
			assert.Equal(t, "github", (*seen).Provider)
		})
	}
}

func TestSanitizeHeaderValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "plain", sanitizeHeaderValue("plain"))
	assert.Equal(t, `a\"bc`, sanitizeHeaderValue("a\"b\r\nc"))
}
