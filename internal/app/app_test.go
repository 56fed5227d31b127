package app

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/heda-org/heda-gitops/internal/config"
	"github.com/heda-org/heda-gitops/internal/github"
	onbmocks "github.com/heda-org/heda-gitops/internal/onboarding/mocks"
	provmocks "github.com/heda-org/heda-gitops/internal/provision/mocks"
	pubmocks "github.com/heda-org/heda-gitops/internal/publish/mocks"
)

// createTestApp creates a GitOpsApp with mocked services for testing.
// This directly constructs the GitOpsApp without using NewGitOpsApp to avoid
// building real GitHub and git clients
func createTestApp(t *testing.T, ctrl *gomock.Controller, addr string) *GitOpsApp {
	t.Helper()

	cfg := createTestAppConfig(t)
	components := &AppComponents{
		Provision:  provmocks.NewMockService(ctrl),
		Publish:    pubmocks.NewMockService(ctrl),
		Onboarding: onbmocks.NewMockService(ctrl),
	}

	ctx := context.Background()
	appCtx, cancel := context.WithCancel(ctx)

	appCfg := &gitOpsAppConfig{
		config:         cfg,
		address:        addr,
		requestTimeout: 10 * time.Second,
		readTimeout:    10 * time.Second,
		writeTimeout:   15 * time.Second,
		idleTimeout:    60 * time.Second,
		authMiddleware: func(next http.Handler) http.Handler { return next },
	}

	server, err := buildHTTPServer(ctx, appCfg, components, github.NewClient("http://127.0.0.1:1", cfg.GitHub.Org, ""))
	require.NoError(t, err)

	return &GitOpsApp{
		config:     cfg,
		components: components,
		httpServer: server,
		ctx:        appCtx,
		cancelFunc: cancel,
	}
}

// createTestAppConfig creates a minimal valid config for testing
func createTestAppConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		GitHub: config.GitHubConfig{
			APIURL:     "http://127.0.0.1:1",
			WebURL:     "http://127.0.0.1:1",
			Org:        "heda-org",
			AdminToken: "admin-token",
			InviteRole: "direct_member",
		},
		Auth: config.AuthConfig{
			Mode:             config.AuthModeSharedSecret,
			SharedSecret:     "s3cret",
			ExpectedProvider: "github",
		},
		Git: config.GitConfig{
			Backend:     config.GitBackendGoGit,
			Binary:      "git",
			AuthorName:  "HEDA GitOps",
			AuthorEmail: "gitops@heda.invalid",
		},
		Onboarding: config.OnboardingConfig{
			LedgerPath: filepath.Join(t.TempDir(), "data", "onboarding.json"),
		},
	}
}

// freeAddress reserves an ephemeral port and releases it for the server
func freeAddress(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return addr
}

func TestGitOpsApp_StartStop(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		addr string
	}{
		{name: "ephemeral port", addr: ":0"},
		{name: "localhost ephemeral port", addr: "127.0.0.1:0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			app := createTestApp(t, ctrl, tt.addr)

			errChan := make(chan error, 1)
			go func() {
				errChan <- app.Start()
			}()

			// Wait for server to start
			time.Sleep(100 * time.Millisecond)

			require.NoError(t, app.Stop(5*time.Second))

			select {
			case startErr := <-errChan:
				require.NoError(t, startErr)
			case <-time.After(5 * time.Second):
				t.Fatal("Start() did not return after Stop()")
			}
			assert.Error(t, app.ctx.Err(), "application context should be cancelled")
		})
	}
}

func TestGitOpsApp_ServesPublicEndpoints(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	addr := freeAddress(t)
	app := createTestApp(t, ctrl, addr)

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()
	t.Cleanup(func() {
		_ = app.Stop(5 * time.Second)
	})

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	resp, err := http.Get("http://" + addr + "/readiness")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGitOpsApp_StopWithoutStart(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	app := createTestApp(t, ctrl, ":0")

	require.NoError(t, app.Stop(time.Second))
	assert.Error(t, app.ctx.Err())
}

func TestGitOpsApp_Getters(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	app := createTestApp(t, ctrl, ":9999")

	assert.Equal(t, "heda-org", app.GetConfig().GitHub.Org)
	assert.Equal(t, ":9999", app.GetHTTPServer().Addr)
	assert.NotNil(t, app.Components().Publish)
	assert.Nil(t, app.Components().Merge)
}
