package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/heda-org/heda-gitops/internal/api"
	"github.com/heda-org/heda-gitops/internal/auth"
	mergemocks "github.com/heda-org/heda-gitops/internal/merge/mocks"
	"github.com/heda-org/heda-gitops/internal/onboarding"
	onboardingmocks "github.com/heda-org/heda-gitops/internal/onboarding/mocks"
	"github.com/heda-org/heda-gitops/internal/provision"
	provisionmocks "github.com/heda-org/heda-gitops/internal/provision/mocks"
	publishmocks "github.com/heda-org/heda-gitops/internal/publish/mocks"
	"github.com/heda-org/heda-gitops/internal/webhook"
)

var publicPaths = []string{"/health", "/readiness", "/version", "/metrics", "/webhooks"}

type testServer struct {
	handler    http.Handler
	provision  *provisionmocks.MockService
	onboarding *onboardingmocks.MockService
	merger     *mergemocks.MockService
}

func newTestServer(t *testing.T, opts ...api.ServerOption) *testServer {
	t.Helper()
	ctrl := gomock.NewController(t)
	ts := &testServer{
		provision:  provisionmocks.NewMockService(ctrl),
		onboarding: onboardingmocks.NewMockService(ctrl),
		merger:     mergemocks.NewMockService(ctrl),
	}

	authMw := auth.WrapWithPublicPaths(auth.SharedSecretMiddleware("s3cret", "github"), publicPaths)
	opts = append([]api.ServerOption{
		api.WithMiddlewares(api.LoggingMiddleware, authMw),
		api.WithWebhook([]byte("hook"), ts.merger),
		api.WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("heda_gitops_http_requests_total 1\n"))
		})),
	}, opts...)

	ts.handler = api.NewServer(api.Services{
		Provision:  ts.provision,
		Publish:    publishmocks.NewMockService(ctrl),
		Onboarding: ts.onboarding,
	}, opts...)
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func authorized(req *http.Request) *http.Request {
	req.Header.Set(auth.HeaderAPIKey, "s3cret")
	req.Header.Set(auth.HeaderGitHubUsername, "octocat")
	return req
}

func TestPublicEndpoints(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	for _, path := range []string{"/health", "/readiness", "/version", "/metrics"} {
		rr := ts.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestProtectedEndpointsRequireAuth(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/init"},
		{http.MethodPost, "/publish"},
		{http.MethodPost, "/onboard"},
		{http.MethodGet, "/onboard/status"},
	}
	for _, tt := range tests {
		rr := ts.do(httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code, tt.path)
	}
}

func TestRoutesReachServices(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	ts.provision.EXPECT().Provision(gomock.Any(), "octocat", "exp1").
		Return(&provision.Result{RepoURL: "https://github.com/heda-org/octocat-exp1.git"}, nil)
	rr := ts.do(authorized(httptest.NewRequest(http.MethodPost, "/init", strings.NewReader(`{"experiment_name":"exp1"}`))))
	assert.Equal(t, http.StatusOK, rr.Code)

	ts.onboarding.EXPECT().Status(gomock.Any(), "octocat").
		Return(&onboarding.StatusResult{Invitation: onboarding.InvitationPending}, nil)
	rr = ts.do(authorized(httptest.NewRequest(http.MethodGet, "/onboard/status", nil)))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"onboarded":false,"invitation":"pending"}`, rr.Body.String())
}

func TestWebhookBypassesBearerAuth(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	payload := []byte(`{"zen":"Design for failure."}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/github", strings.NewReader(string(payload)))
	req.Header.Set(webhook.EventHeader, "ping")
	req.Header.Set(webhook.SignatureHeader, webhook.Sign([]byte("hook"), payload))

	rr := ts.do(req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestWebhookDisabled(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	handler := api.NewServer(api.Services{
		Provision:  provisionmocks.NewMockService(ctrl),
		Publish:    publishmocks.NewMockService(ctrl),
		Onboarding: onboardingmocks.NewMockService(ctrl),
	})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/github", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Not Found", body["detail"])
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rr := ts.do(authorized(httptest.NewRequest(http.MethodGet, "/init", nil)))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
