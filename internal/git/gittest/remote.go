// Package gittest provides local bare repositories that stand in for remote
// GitOps repositories in tests.
package gittest

import (
	"os/exec"
	"path/filepath"
	"testing"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// NewBareRemote creates a bare repository whose HEAD points at main and
// returns its file:// URL
func NewBareRemote(t testing.TB) string {
	t.Helper()
	return "file://" + NewBareRemoteAt(t, filepath.Join(t.TempDir(), "remote.git"))
}

// NewBareRemoteAt creates the bare repository at dir and returns dir
func NewBareRemoteAt(t testing.TB, dir string) string {
	t.Helper()

	repo, err := gogit.PlainInit(dir, true)
	if err != nil {
		t.Fatalf("failed to init bare repository: %v", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.Main)); err != nil {
		t.Fatalf("failed to point HEAD at main: %v", err)
	}
	return dir
}

// BranchHash returns the commit a branch of the bare repository at dir points
// to, or the empty string when the branch does not exist
func BranchHash(t testing.TB, dir, branch string) string {
	t.Helper()

	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), false)
	if err != nil {
		return ""
	}
	return ref.Hash().String()
}

// Branches lists the branch names of the repository at dir
func Branches(t testing.TB, dir string) []string {
	t.Helper()

	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}
	iter, err := repo.Branches()
	if err != nil {
		t.Fatalf("failed to list branches: %v", err)
	}
	var names []string
	_ = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	return names
}

// RequireGit skips the test when no git binary is available
func RequireGit(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}
