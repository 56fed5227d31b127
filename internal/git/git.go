// Package git drives the local working copies used to seed and publish to
// GitOps repositories. Two backends implement the same narrow interface: one
// shells out to the git binary, the other uses go-git in process.
package git

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
)

//go:generate mockgen -destination=mocks/mock_git.go -package=mocks -source=git.go

// DefaultRemote is the name of the remote every working copy pushes to
const DefaultRemote = "origin"

// tokenUser is the basic auth username GitHub expects alongside a token
const tokenUser = "x-access-token"

var (
	// ErrNothingToCommit is returned by Commit when the working tree has no changes
	ErrNothingToCommit = errors.New("nothing to commit")

	// ErrBranchExists is returned by CheckoutNewBranch when the branch already exists
	ErrBranchExists = errors.New("branch already exists")

	// ErrRepositoryNotFound is returned by Clone when the remote does not exist
	ErrRepositoryNotFound = errors.New("repository not found")

	// ErrUnknownBackend is returned by NewClient for an unsupported backend name
	ErrUnknownBackend = errors.New("unknown git backend")
)

// Client creates local working copies
type Client interface {
	// Init creates a new repository in dir with remoteURL as its origin
	Init(ctx context.Context, dir, remoteURL string) (Repository, error)

	// Clone clones remoteURL into dir, which must be empty or absent
	Clone(ctx context.Context, remoteURL, dir string) (Repository, error)
}

// Repository is a working copy on local disk
type Repository interface {
	// Dir returns the working tree root
	Dir() string

	// CheckoutNewBranch creates a branch at HEAD and switches to it,
	// keeping any uncommitted changes
	CheckoutNewBranch(ctx context.Context, name string) error

	// AddAll stages every change in the working tree
	AddAll(ctx context.Context) error

	// Commit records the staged changes with the configured author
	Commit(ctx context.Context, message string) error

	// RenameBranch renames the current branch
	RenameBranch(ctx context.Context, name string) error

	// Push pushes branch to origin and sets it as upstream
	Push(ctx context.Context, branch string) error
}

// Author identifies the commit author and committer
type Author struct {
	Name  string
	Email string
}

type clientConfig struct {
	author  Author
	token   string
	gitPath string
}

// Option configures a Client
type Option func(*clientConfig)

// WithAuthor sets the commit identity
func WithAuthor(name, email string) Option {
	return func(c *clientConfig) {
		c.author = Author{Name: name, Email: email}
	}
}

// WithToken authenticates https remotes with a GitHub token
func WithToken(token string) Option {
	return func(c *clientConfig) {
		c.token = token
	}
}

// WithGitBinary sets the git executable used by the exec backend
func WithGitBinary(path string) Option {
	return func(c *clientConfig) {
		c.gitPath = path
	}
}

// NewClient returns the client for backend, "exec" or "go-git"
func NewClient(backend string, opts ...Option) (Client, error) {
	cfg := &clientConfig{
		author:  Author{Name: "HEDA GitOps", Email: "gitops@heda.invalid"},
		gitPath: "git",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	switch backend {
	case "exec", "":
		return newExecClient(cfg)
	case "go-git":
		return newGoGitClient(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// needsAuth reports whether remoteURL is an http(s) remote that credentials
// should be sent to. Local paths and file:// remotes never get them.
func needsAuth(remoteURL string) bool {
	u, err := url.Parse(remoteURL)
	if err != nil {
		return false
	}
	return u.Scheme == "https" || u.Scheme == "http"
}

func basicAuthHeader(token string) string {
	return "Authorization: Basic " + base64.StdEncoding.EncodeToString([]byte(tokenUser+":"+token))
}
