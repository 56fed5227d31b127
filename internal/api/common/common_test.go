package common

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heda-org/heda-gitops/internal/auth"
	"github.com/heda-org/heda-gitops/internal/git"
	"github.com/heda-org/heda-gitops/internal/httpclient"
	"github.com/heda-org/heda-gitops/internal/onboarding"
	"github.com/heda-org/heda-gitops/internal/proposal"
	"github.com/heda-org/heda-gitops/internal/provision"
	"github.com/heda-org/heda-gitops/internal/publish"
)

func TestErrorStatus(t *testing.T) {
	t.Parallel()

	upstream := httpclient.NewHTTPError(http.StatusUnprocessableEntity,
		"https://api.github.com/orgs/heda-org/repos", "Repository creation failed. (name already exists on this account)")

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantDetail string
	}{
		{
			name:       "bad experiment name",
			err:        fmt.Errorf("%w: %q", proposal.ErrInvalidExperimentName, "a b"),
			wantStatus: http.StatusBadRequest,
			wantDetail: `invalid experiment name: "a b"`,
		},
		{
			name:       "bad path",
			err:        fmt.Errorf("%w: %q escapes the repository", proposal.ErrInvalidPath, "../x"),
			wantStatus: http.StatusBadRequest,
			wantDetail: `invalid file path: "../x" escapes the repository`,
		},
		{
			name:       "unknown github user",
			err:        fmt.Errorf("%w: ghost", onboarding.ErrUserNotFound),
			wantStatus: http.StatusBadRequest,
			wantDetail: "github user does not exist: ghost",
		},
		{
			name:       "nothing to publish",
			err:        publish.ErrNoChanges,
			wantStatus: http.StatusBadRequest,
			wantDetail: "No changes to publish",
		},
		{
			name:       "repository missing",
			err:        fmt.Errorf("%w: octocat-exp1", publish.ErrRepoNotFound),
			wantStatus: http.StatusNotFound,
			wantDetail: "repository not found: octocat-exp1; initialize the experiment with /init first",
		},
		{
			name:       "upstream rejection keeps detail",
			err:        fmt.Errorf("%w: %w", provision.ErrRepoCreation, upstream),
			wantStatus: http.StatusInternalServerError,
			wantDetail: "failed to create repository: " + upstream.Error(),
		},
		{
			name:       "invite rejected",
			err:        fmt.Errorf("%w octocat: boom", onboarding.ErrInviteFailed),
			wantStatus: http.StatusInternalServerError,
			wantDetail: "failed to invite user octocat: boom",
		},
		{
			name:       "git failure is generic",
			err:        fmt.Errorf("%w: %w", provision.ErrSeed, &git.ExecError{Args: []string{"push"}, Err: errors.New("exit status 128"), StdErr: "fatal: /tmp/heda-init-1"}),
			wantStatus: http.StatusInternalServerError,
			wantDetail: DetailGitFailed,
		},
		{
			name:       "timeout",
			err:        fmt.Errorf("clone: %w", context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantDetail: DetailTimeout,
		},
		{
			name:       "unknown",
			err:        errors.New("disk full"),
			wantStatus: http.StatusInternalServerError,
			wantDetail: DetailInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			status, detail := ErrorStatus(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantDetail, detail)
		})
	}
}

func TestWriteError(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/publish", nil)
	WriteError(rr, req, publish.ErrNoChanges)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "No changes to publish", body.Detail)
}

func TestRequireIdentity(t *testing.T) {
	t.Parallel()

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		rr := httptest.NewRecorder()
		_, ok := RequireIdentity(rr, httptest.NewRequest(http.MethodGet, "/onboard/status", nil))
		assert.False(t, ok)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("present", func(t *testing.T) {
		t.Parallel()
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/onboard/status", nil)
		req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{Username: "octocat"}))
		id, ok := RequireIdentity(rr, req)
		require.True(t, ok)
		assert.Equal(t, "octocat", id.Username)
	})
}
