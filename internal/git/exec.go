package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ExecErrorType classifies a failed git invocation from its stderr
type ExecErrorType int

const (
	// Unknown is any failure not classified below
	Unknown ExecErrorType = iota
	// AuthenticationFailed means the remote rejected the credentials
	AuthenticationFailed
	// RepositoryNotFound means the remote repository does not exist
	RepositoryNotFound
	// PushRejected means the remote refused the pushed ref
	PushRejected
	// NothingToCommit means commit found a clean working tree
	NothingToCommit
)

// ExecError is returned when git exits with a non-zero status. Credentials
// are removed from StdErr and StdOut before the error is built.
type ExecError struct {
	Type   ExecErrorType
	Args   []string
	Err    error
	StdErr string
	StdOut string
}

func (e *ExecError) Error() string {
	b := new(strings.Builder)
	b.WriteString("git ")
	if len(e.Args) > 0 {
		b.WriteString(e.Args[0])
		b.WriteString(" ")
	}
	b.WriteString("failed: ")
	b.WriteString(e.Err.Error())
	if stderr := strings.TrimSpace(e.StdErr); stderr != "" {
		b.WriteString(": ")
		b.WriteString(stderr)
	}
	return b.String()
}

func (e *ExecError) Unwrap() error {
	switch e.Type {
	case NothingToCommit:
		return ErrNothingToCommit
	case RepositoryNotFound:
		return ErrRepositoryNotFound
	default:
		return e.Err
	}
}

func classify(stderr, stdout string) ExecErrorType {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "authentication failed"),
		strings.Contains(lower, "could not read username"),
		strings.Contains(lower, "403"):
		return AuthenticationFailed
	case strings.Contains(lower, "repository not found"),
		strings.Contains(lower, "does not appear to be a git repository"),
		strings.Contains(lower, "' does not exist"):
		return RepositoryNotFound
	case strings.Contains(lower, "[rejected]"),
		strings.Contains(lower, "[remote rejected]"),
		strings.Contains(lower, "protected branch"):
		return PushRejected
	case strings.Contains(stdout, "nothing to commit"),
		strings.Contains(stdout, "nothing added to commit"):
		return NothingToCommit
	}
	return Unknown
}

// runResult holds the captured output of a git invocation
type runResult struct {
	Stdout string
	Stderr string
}

// runner runs git commands in a directory
type runner struct {
	gitPath string
	dir     string
	author  Author
	token   string
}

func (r *runner) in(dir string) *runner {
	cp := *r
	cp.dir = dir
	return &cp
}

// run executes git with args. Omit the leading "git". When remote is true and
// a token is configured, the token is passed as an http.extraHeader through
// GIT_CONFIG_* variables so it never appears on the command line or in
// .git/config.
func (r *runner) run(ctx context.Context, remote bool, args ...string) (runResult, error) {
	cmd := exec.CommandContext(ctx, r.gitPath, args...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(),
		"GIT_TERMINAL_PROMPT=0",
		"GIT_AUTHOR_NAME="+r.author.Name,
		"GIT_AUTHOR_EMAIL="+r.author.Email,
		"GIT_COMMITTER_NAME="+r.author.Name,
		"GIT_COMMITTER_EMAIL="+r.author.Email,
	)
	if remote && r.token != "" {
		cmd.Env = append(cmd.Env,
			"GIT_CONFIG_COUNT=1",
			"GIT_CONFIG_KEY_0=http.extraHeader",
			"GIT_CONFIG_VALUE_0="+basicAuthHeader(r.token),
		)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		out, errOut := r.redact(stdout.String()), r.redact(stderr.String())
		return runResult{}, &ExecError{
			Type:   classify(errOut, out),
			Args:   args,
			Err:    err,
			StdOut: out,
			StdErr: errOut,
		}
	}
	return runResult{Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

func (r *runner) redact(s string) string {
	if r.token == "" {
		return s
	}
	return strings.ReplaceAll(s, r.token, "***")
}

type execClient struct {
	runner *runner
}

func newExecClient(cfg *clientConfig) (*execClient, error) {
	p, err := exec.LookPath(cfg.gitPath)
	if err != nil {
		return nil, fmt.Errorf("no %q program on path: %w", cfg.gitPath, err)
	}
	return &execClient{runner: &runner{gitPath: p, author: cfg.author, token: cfg.token}}, nil
}

func (c *execClient) Init(ctx context.Context, dir, remoteURL string) (Repository, error) {
	// git runs inside dir, so it must exist first
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create repository directory: %w", err)
	}
	r := c.runner.in(dir)
	if _, err := r.run(ctx, false, "init", "--quiet"); err != nil {
		return nil, err
	}
	if _, err := r.run(ctx, false, "remote", "add", DefaultRemote, remoteURL); err != nil {
		return nil, err
	}
	return &execRepository{runner: r, auth: needsAuth(remoteURL)}, nil
}

func (c *execClient) Clone(ctx context.Context, remoteURL, dir string) (Repository, error) {
	auth := needsAuth(remoteURL)
	if _, err := c.runner.in("").run(ctx, auth, "clone", "--quiet", "--", remoteURL, dir); err != nil {
		return nil, err
	}
	return &execRepository{runner: c.runner.in(dir), auth: auth}, nil
}

type execRepository struct {
	runner *runner
	auth   bool
}

func (r *execRepository) Dir() string {
	return r.runner.dir
}

func (r *execRepository) CheckoutNewBranch(ctx context.Context, name string) error {
	if _, err := r.runner.run(ctx, false, "checkout", "-b", name); err != nil {
		var execErr *ExecError
		if errors.As(err, &execErr) && strings.Contains(execErr.StdErr, "already exists") {
			return fmt.Errorf("%w: %s", ErrBranchExists, name)
		}
		return err
	}
	return nil
}

func (r *execRepository) AddAll(ctx context.Context) error {
	_, err := r.runner.run(ctx, false, "add", "--all")
	return err
}

func (r *execRepository) Commit(ctx context.Context, message string) error {
	_, err := r.runner.run(ctx, false, "commit", "-m", message)
	return err
}

func (r *execRepository) RenameBranch(ctx context.Context, name string) error {
	_, err := r.runner.run(ctx, false, "branch", "-M", name)
	return err
}

func (r *execRepository) Push(ctx context.Context, branch string) error {
	_, err := r.runner.run(ctx, r.auth, "push", "--quiet", "-u", DefaultRemote, branch)
	return err
}
