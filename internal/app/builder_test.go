package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/heda-org/heda-gitops/internal/auth"
	"github.com/heda-org/heda-gitops/internal/config"
	gitmocks "github.com/heda-org/heda-gitops/internal/git/mocks"
	mergemocks "github.com/heda-org/heda-gitops/internal/merge/mocks"
	onbmocks "github.com/heda-org/heda-gitops/internal/onboarding/mocks"
	"github.com/heda-org/heda-gitops/internal/webhook"
)

func TestBaseConfig_Defaults(t *testing.T) {
	t.Parallel()

	built, err := baseConfig()
	require.NoError(t, err)
	assert.Equal(t, defaultHTTPAddress, built.address)
	assert.Equal(t, defaultRequestTimeout, built.requestTimeout)
	assert.Equal(t, defaultWriteTimeout, built.writeTimeout)
}

func TestBaseConfig_AddressFromConfig(t *testing.T) {
	t.Parallel()

	cfg := createTestAppConfig(t)
	cfg.Server.Address = ":7070"

	built, err := baseConfig(WithConfig(cfg))
	require.NoError(t, err)
	assert.Equal(t, ":7070", built.address)

	built, err = baseConfig(WithConfig(cfg), WithAddress(":9090"))
	require.NoError(t, err)
	assert.Equal(t, ":9090", built.address, "explicit address wins over config")
}

func TestWithAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "port only", addr: ":8080"},
		{name: "localhost", addr: "localhost:8080"},
		{name: "ip and port", addr: "10.0.0.1:443"},
		{name: "ipv6", addr: "[::1]:8080"},
		{name: "empty", addr: "", wantErr: true},
		{name: "missing port", addr: ":", wantErr: true},
		{name: "no colon", addr: "8080", wantErr: true},
		{name: "bad port", addr: ":http-alt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			built, err := baseConfig(WithAddress(tt.addr))
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, built)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.addr, built.address)
		})
	}
}

func TestWithRequestTimeout(t *testing.T) {
	t.Parallel()

	built, err := baseConfig(WithRequestTimeout(10 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, built.requestTimeout)
	assert.Greater(t, built.writeTimeout, built.requestTimeout)

	_, err = baseConfig(WithRequestTimeout(0))
	require.Error(t, err)
}

func TestWithMiddlewares(t *testing.T) {
	t.Parallel()

	mw := func(next http.Handler) http.Handler { return next }
	built, err := baseConfig(WithMiddlewares(mw, mw))
	require.NoError(t, err)
	assert.Len(t, built.middlewares, 2)
}

func TestNewGitOpsApp_RequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := NewGitOpsApp(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config cannot be nil")
}

func TestNewGitOpsApp_InvalidGitBackend(t *testing.T) {
	t.Parallel()

	cfg := createTestAppConfig(t)
	cfg.Git.Backend = "svn"

	_, err := NewGitOpsApp(context.Background(), WithConfig(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create git client")
}

func TestNewGitOpsApp_MissingAdminTokenFile(t *testing.T) {
	t.Parallel()

	cfg := createTestAppConfig(t)
	cfg.GitHub.AdminToken = ""
	cfg.GitHub.AdminTokenFile = "/nonexistent/token"

	_, err := NewGitOpsApp(context.Background(), WithConfig(cfg))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin token")
}

func TestNewGitOpsApp_SharedSecretAuth(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	app, err := NewGitOpsApp(context.Background(),
		WithConfig(createTestAppConfig(t)),
		WithGitClient(gitmocks.NewMockClient(ctrl)),
	)
	require.NoError(t, err)
	handler := app.GetHTTPServer().Handler

	tests := []struct {
		name       string
		method     string
		path       string
		header     map[string]string
		wantStatus int
		wantDetail string
	}{
		{
			name:       "health is public",
			method:     http.MethodGet,
			path:       "/health",
			wantStatus: http.StatusOK,
		},
		{
			name:       "version is public",
			method:     http.MethodGet,
			path:       "/version",
			wantStatus: http.StatusOK,
		},
		{
			name:       "onboard needs the shared secret",
			method:     http.MethodPost,
			path:       "/onboard",
			wantStatus: http.StatusUnauthorized,
			wantDetail: "Invalid API key",
		},
		{
			name:       "username header is required",
			method:     http.MethodGet,
			path:       "/onboard/status",
			header:     map[string]string{auth.HeaderAPIKey: "s3cret"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "webhook is not mounted without app credentials",
			method:     http.MethodPost,
			path:       "/webhooks/github",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantDetail != "" {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.wantDetail, body["detail"])
			}
		})
	}
}

func TestNewGitOpsApp_OnboardingUsesLedger(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	ledger := onbmocks.NewMockLedger(ctrl)
	ledger.EXPECT().Get(gomock.Any(), "alice").Return(nil, nil)

	cfg := createTestAppConfig(t)
	app, err := NewGitOpsApp(context.Background(),
		WithConfig(cfg),
		WithGitClient(gitmocks.NewMockClient(ctrl)),
		WithLedger(ledger),
	)
	require.NoError(t, err)
	assert.Same(t, ledger, app.Components().Ledger)

	req := httptest.NewRequest(http.MethodGet, "/onboard/status", nil)
	req.Header.Set(auth.HeaderAPIKey, "s3cret")
	req.Header.Set(auth.HeaderGitHubUsername, "alice")
	rec := httptest.NewRecorder()
	app.GetHTTPServer().Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"onboarded":false,"invitation":""}`, rec.Body.String())
}

func TestNewGitOpsApp_MembershipGate(t *testing.T) {
	t.Parallel()

	gh := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/orgs/heda-org/members/mallory" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		t.Errorf("unexpected GitHub call %s %s", r.Method, r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(gh.Close)

	ctrl := gomock.NewController(t)
	cfg := createTestAppConfig(t)
	cfg.GitHub.APIURL = gh.URL
	cfg.GitHub.RequireOrgMembership = true

	app, err := NewGitOpsApp(context.Background(),
		WithConfig(cfg),
		WithGitClient(gitmocks.NewMockClient(ctrl)),
	)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/init", strings.NewReader(`{"experiment_name":"exp"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.HeaderAPIKey, "s3cret")
	req.Header.Set(auth.HeaderGitHubUsername, "mallory")
	rec := httptest.NewRecorder()
	app.GetHTTPServer().Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"detail":"User 'mallory' is not a member of 'heda-org'"}`, rec.Body.String())
}

func TestNewGitOpsApp_Webhook(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	cfg := createTestAppConfig(t)
	cfg.GitHub.App = config.GitHubAppConfig{
		ID:             "42",
		PrivateKeyPath: "/unused/key.pem",
		WebhookSecret:  "whsec",
	}

	app, err := NewGitOpsApp(context.Background(),
		WithConfig(cfg),
		WithGitClient(gitmocks.NewMockClient(ctrl)),
		WithAppTokenSource(mergemocks.NewMockTokenSource(ctrl)),
	)
	require.NoError(t, err)
	require.NotNil(t, app.Components().Merge)

	payload := []byte(`{"zen":"Keep it logically awesome."}`)

	tests := []struct {
		name       string
		signature  string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "signed ping",
			signature:  webhook.Sign([]byte("whsec"), payload),
			wantStatus: http.StatusOK,
			wantBody:   `{"message":"pong"}`,
		},
		{
			name:       "wrong secret",
			signature:  webhook.Sign([]byte("other"), payload),
			wantStatus: http.StatusUnauthorized,
			wantBody:   `{"detail":"Invalid signature"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/webhooks/github", strings.NewReader(string(payload)))
			req.Header.Set(webhook.EventHeader, "ping")
			req.Header.Set(webhook.SignatureHeader, tt.signature)
			rec := httptest.NewRecorder()
			app.GetHTTPServer().Handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestReadinessChecker(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	tests := []struct {
		name    string
		checker *readinessChecker
		wantErr string
	}{
		{
			name:    "writable ledger directory",
			checker: newReadinessChecker(dir+"/data/onboarding.json", ""),
		},
		{
			name:    "missing git binary",
			checker: newReadinessChecker(dir+"/onboarding.json", "git-does-not-exist-here"),
			wantErr: "git binary",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.checker.CheckReadiness(context.Background())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}
