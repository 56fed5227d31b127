package app

import (
	"github.com/heda-org/heda-gitops/internal/merge"
	"github.com/heda-org/heda-gitops/internal/onboarding"
	"github.com/heda-org/heda-gitops/internal/provision"
	"github.com/heda-org/heda-gitops/internal/publish"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Provision creates experiment repositories
	Provision provision.Service

	// Publish turns uploads into pull requests
	Publish publish.Service

	// Onboarding invites users into the organization
	Onboarding onboarding.Service

	// Merge auto-merges verified pull requests, nil when the webhook is disabled
	Merge merge.Service

	// Ledger records onboarding state
	Ledger onboarding.Ledger
}
