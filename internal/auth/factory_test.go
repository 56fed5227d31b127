package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/heda-org/heda-gitops/internal/auth/mocks"
	"github.com/heda-org/heda-gitops/internal/config"
)

func TestNewAuthMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *config.AuthConfig
		noInfo  bool
		wantErr string
	}{
		{name: "nil config", cfg: nil, wantErr: "auth configuration is required"},
		{
			name: "oauth",
			cfg:  &config.AuthConfig{Mode: config.AuthModeOAuth, Domain: "tenant.auth0.com", Audience: "https://api", ExpectedProvider: "github"},
		},
		{
			name: "oauth with refresh",
			cfg:  &config.AuthConfig{Mode: config.AuthModeOAuth, Domain: "tenant.auth0.com", Audience: "https://api", JWKSRefreshInterval: "1h"},
		},
		{
			name:    "oauth without domain",
			cfg:     &config.AuthConfig{Mode: config.AuthModeOAuth, Audience: "https://api"},
			wantErr: "auth.domain and auth.audience",
		},
		{
			name:    "oauth without userinfo",
			cfg:     &config.AuthConfig{Mode: config.AuthModeOAuth, Domain: "tenant.auth0.com", Audience: "https://api"},
			noInfo:  true,
			wantErr: "userinfo resolver",
		},
		{
			name:    "oauth with bad refresh",
			cfg:     &config.AuthConfig{Mode: config.AuthModeOAuth, Domain: "tenant.auth0.com", Audience: "https://api", JWKSRefreshInterval: "5s"},
			wantErr: "at least 1m",
		},
		{
			name: "shared secret",
			cfg:  &config.AuthConfig{Mode: config.AuthModeSharedSecret, SharedSecret: "s3cret"},
		},
		{
			name:    "unknown mode",
			cfg:     &config.AuthConfig{Mode: "ldap"},
			wantErr: "unsupported auth mode: ldap",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var userInfo UserInfoResolver
			if !tt.noInfo {
				userInfo = mocks.NewMockUserInfoResolver(gomock.NewController(t))
			}
			mw, err := NewAuthMiddleware(tt.cfg, userInfo)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, mw)

			// every mode rejects an unauthenticated request
			rr := httptest.NewRecorder()
			mw(http.NotFoundHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/init", nil))
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}
