// Package integration provides integration tests for the HEDA GitOps API server.
// These tests run the assembled application against a fake GitHub API whose
// repositories are bare git repositories on local disk, covering provisioning,
// publication, onboarding and the webhook auto-merge flow.
package integration
