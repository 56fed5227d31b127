package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// goGitClient implements Client with go-git on the local filesystem
type goGitClient struct {
	author Author
	token  string
}

func newGoGitClient(cfg *clientConfig) *goGitClient {
	return &goGitClient{author: cfg.author, token: cfg.token}
}

func (c *goGitClient) authFor(remoteURL string) transport.AuthMethod {
	if c.token == "" || !needsAuth(remoteURL) {
		return nil
	}
	slog.Debug("Using Git HTTP Basic authentication", "username", tokenUser)
	return &githttp.BasicAuth{Username: tokenUser, Password: c.token}
}

func (c *goGitClient) Init(_ context.Context, dir, remoteURL string) (Repository, error) {
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		return nil, fmt.Errorf("failed to init repository: %w", err)
	}
	if _, err := repo.CreateRemote(&config.RemoteConfig{
		Name: DefaultRemote,
		URLs: []string{remoteURL},
	}); err != nil {
		return nil, fmt.Errorf("failed to add remote: %w", err)
	}
	return &goGitRepository{repo: repo, dir: dir, author: c.author, auth: c.authFor(remoteURL)}, nil
}

func (c *goGitClient) Clone(ctx context.Context, remoteURL, dir string) (Repository, error) {
	auth := c.authFor(remoteURL)
	repo, err := gogit.PlainCloneContext(ctx, dir, false, &gogit.CloneOptions{
		URL:  remoteURL,
		Auth: auth,
	})
	if errors.Is(err, transport.ErrRepositoryNotFound) {
		return nil, fmt.Errorf("failed to clone repository: %w: %w", ErrRepositoryNotFound, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to clone repository: %w", err)
	}
	return &goGitRepository{repo: repo, dir: dir, author: c.author, auth: auth}, nil
}

type goGitRepository struct {
	repo   *gogit.Repository
	dir    string
	author Author
	auth   transport.AuthMethod
}

func (r *goGitRepository) Dir() string {
	return r.dir
}

// CheckoutNewBranch only moves references. The working tree and index are
// left untouched so pending changes carry over to the new branch.
func (r *goGitRepository) CheckoutNewBranch(_ context.Context, name string) error {
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	ref := plumbing.NewBranchReferenceName(name)
	if _, err := r.repo.Reference(ref, false); err == nil {
		return fmt.Errorf("%w: %s", ErrBranchExists, name)
	}

	if err := r.repo.Storer.SetReference(plumbing.NewHashReference(ref, head.Hash())); err != nil {
		return fmt.Errorf("failed to create branch %s: %w", name, err)
	}
	if err := r.repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, ref)); err != nil {
		return fmt.Errorf("failed to switch to branch %s: %w", name, err)
	}
	return nil
}

func (r *goGitRepository) AddAll(_ context.Context) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := wt.AddWithOptions(&gogit.AddOptions{All: true}); err != nil {
		return fmt.Errorf("failed to stage changes: %w", err)
	}
	return nil
}

func (r *goGitRepository) Commit(_ context.Context, message string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	sig := &object.Signature{Name: r.author.Name, Email: r.author.Email, When: time.Now()}
	if _, err := wt.Commit(message, &gogit.CommitOptions{Author: sig, Committer: sig}); err != nil {
		if errors.Is(err, gogit.ErrEmptyCommit) {
			return ErrNothingToCommit
		}
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// RenameBranch points name at the current commit, moves HEAD to it and
// deletes the previous branch
func (r *goGitRepository) RenameBranch(_ context.Context, name string) error {
	head, err := r.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	target := plumbing.NewBranchReferenceName(name)
	if head.Name() == target {
		return nil
	}

	if err := r.repo.Storer.SetReference(plumbing.NewHashReference(target, head.Hash())); err != nil {
		return fmt.Errorf("failed to create branch %s: %w", name, err)
	}
	if err := r.repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, target)); err != nil {
		return fmt.Errorf("failed to switch to branch %s: %w", name, err)
	}
	if head.Name().IsBranch() {
		if err := r.repo.Storer.RemoveReference(head.Name()); err != nil {
			return fmt.Errorf("failed to remove branch %s: %w", head.Name().Short(), err)
		}
	}
	return nil
}

func (r *goGitRepository) Push(ctx context.Context, branch string) error {
	ref := plumbing.NewBranchReferenceName(branch)
	err := r.repo.PushContext(ctx, &gogit.PushOptions{
		RemoteName: DefaultRemote,
		RefSpecs:   []config.RefSpec{config.RefSpec(ref.String() + ":" + ref.String())},
		Auth:       r.auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push %s: %w", branch, err)
	}

	// Record the upstream like "git push -u" does.
	cfg, err := r.repo.Config()
	if err != nil {
		return fmt.Errorf("failed to read repository config: %w", err)
	}
	cfg.Branches[branch] = &config.Branch{Name: branch, Remote: DefaultRemote, Merge: ref}
	if err := r.repo.SetConfig(cfg); err != nil {
		return fmt.Errorf("failed to set upstream for %s: %w", branch, err)
	}
	return nil
}
