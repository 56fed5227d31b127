package experiments

//go:generate mockgen -destination=mocks/mock_gate.go -package=mocks -source=gate.go

import (
	"context"
	"fmt"
	"net/http"

	"github.com/heda-org/heda-gitops/internal/api/common"
	"github.com/heda-org/heda-gitops/internal/logger"
)

// MembershipChecker reports organization membership of a GitHub login
type MembershipChecker interface {
	IsOrgMember(ctx context.Context, login string) (bool, error)
}

// RequireOrgMember returns middleware rejecting callers who are not members of org
func RequireOrgMember(checker MembershipChecker, org string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := common.RequireIdentity(w, r)
			if !ok {
				return
			}

			member, err := checker.IsOrgMember(r.Context(), id.Username)
			if err != nil {
				logger.Errorf("Failed to check organization membership of %s: %v", id.Username, err)
				common.WriteErrorResponse(w,
					fmt.Sprintf("Failed to check membership of '%s' in '%s': %v", id.Username, org, err),
					http.StatusInternalServerError)
				return
			}
			if !member {
				common.WriteErrorResponse(w,
					fmt.Sprintf("User '%s' is not a member of '%s'", id.Username, org), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
