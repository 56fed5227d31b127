package common

import (
	"context"
	"errors"
	"net/http"

	"github.com/heda-org/heda-gitops/internal/git"
	"github.com/heda-org/heda-gitops/internal/httpclient"
	"github.com/heda-org/heda-gitops/internal/onboarding"
	"github.com/heda-org/heda-gitops/internal/proposal"
	"github.com/heda-org/heda-gitops/internal/provision"
	"github.com/heda-org/heda-gitops/internal/publish"
)

// Generic details for failures whose cause stays in the server log
const (
	DetailGitFailed = "Git operation failed"
	DetailInternal  = "Internal server error"
	DetailTimeout   = "Request timed out"
)

var clientErrors = []error{
	proposal.ErrInvalidExperimentName,
	proposal.ErrInvalidUsername,
	proposal.ErrInvalidPath,
	publish.ErrNoFiles,
	publish.ErrDuplicatePath,
	onboarding.ErrUserNotFound,
}

// ErrorStatus maps a pipeline error to its HTTP status and response detail.
// Input errors are 400 with the error text. Upstream rejections are 500
// with the upstream detail. Git failures are 500 with a generic detail,
// since git output can mention local paths.
func ErrorStatus(err error) (int, string) {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest, err.Error()
		}
	}

	switch {
	case errors.Is(err, publish.ErrNoChanges):
		return http.StatusBadRequest, "No changes to publish"
	case errors.Is(err, publish.ErrRepoNotFound):
		return http.StatusNotFound, err.Error() + "; initialize the experiment with /init first"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, DetailTimeout
	case isUpstream(err):
		return http.StatusInternalServerError, err.Error()
	}

	var execErr *git.ExecError
	if errors.As(err, &execErr) {
		return http.StatusInternalServerError, DetailGitFailed
	}
	return http.StatusInternalServerError, DetailInternal
}

func isUpstream(err error) bool {
	var httpErr *httpclient.HTTPError
	return errors.As(err, &httpErr) ||
		errors.Is(err, provision.ErrRepoCreation) ||
		errors.Is(err, provision.ErrBranchProtection) ||
		errors.Is(err, onboarding.ErrInviteFailed) ||
		errors.Is(err, publish.ErrPullRequest)
}
