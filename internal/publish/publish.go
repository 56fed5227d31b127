// Package publish turns an uploaded file set into a pull request against an
// experiment's GitOps repository: clone, write, hash, branch, commit, push
// and open the pull request, all inside a throwaway working copy.
package publish

//go:generate mockgen -destination=mocks/mock_publish.go -package=mocks -source=publish.go

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/heda-org/heda-gitops/internal/git"
	"github.com/heda-org/heda-gitops/internal/github"
	"github.com/heda-org/heda-gitops/internal/logger"
	"github.com/heda-org/heda-gitops/internal/otel"
	"github.com/heda-org/heda-gitops/internal/proposal"
	"github.com/heda-org/heda-gitops/internal/telemetry"
)

const (
	// BaseBranch is the branch proposals are opened against
	BaseBranch = "main"

	// CommitMessageFormat formats the proposal commit message with the hash
	CommitMessageFormat = "Propose experiment (%s)"
)

var (
	// ErrNoFiles is returned when a publication carries no files
	ErrNoFiles = errors.New("no files uploaded")

	// ErrDuplicatePath is returned when two uploaded files share a path
	ErrDuplicatePath = errors.New("duplicate file path")

	// ErrNoChanges is returned when the uploaded files match the repository content
	ErrNoChanges = errors.New("no changes to publish")

	// ErrRepoNotFound is returned when the GitOps repository does not exist
	ErrRepoNotFound = errors.New("repository not found")

	// ErrPullRequest is returned when the branch was pushed but the pull request could not be opened
	ErrPullRequest = errors.New("failed to open pull request")
)

// Request is one publication
type Request struct {
	Experiment string
	Username   string
	// UserID is the verified subject of the caller, used to look up the
	// caller's own GitHub token when pull requests are opened as the user
	UserID string
	Files  []proposal.File
}

// Result describes an opened proposal
type Result struct {
	ExperimentID string `json:"experiment_id"`
	PRURL        string `json:"pr_url"`
	BranchName   string `json:"branch_name"`
	PRNumber     int    `json:"pr_number"`
	PublishID    string `json:"publish_id"`
}

// PullRequestOpener opens pull requests in the organization
type PullRequestOpener interface {
	CreatePullRequest(ctx context.Context, repo string, pr github.NewPullRequest) (*github.PullRequest, error)
}

// UserTokenSource returns the GitHub token linked to a verified identity
type UserTokenSource interface {
	GitHubToken(ctx context.Context, userID string) (string, error)
}

// OpenerFactory builds a PullRequestOpener authenticated with token
type OpenerFactory func(token string) PullRequestOpener

// RemoteURLFunc maps a repository name to its clone URL
type RemoteURLFunc func(repo string) string

// GitHubRemote returns the https clone URL builder for org on webURL
func GitHubRemote(webURL, org string) RemoteURLFunc {
	base := strings.TrimRight(webURL, "/")
	return func(repo string) string {
		return fmt.Sprintf("%s/%s/%s.git", base, org, repo)
	}
}

// Service publishes experiment proposals
type Service interface {
	Publish(ctx context.Context, req Request) (*Result, error)
}

type service struct {
	git        git.Client
	opener     PullRequestOpener
	remoteURL  RemoteURLFunc
	userTokens UserTokenSource
	asUser     OpenerFactory
	workDir    string
	now        func() time.Time
	newID      func() string
	metrics    *telemetry.PipelineMetrics
	tracer     trace.Tracer
	autoMerge  bool
}

// Option configures the publication service
type Option func(*service)

// WithWorkDir sets the parent directory of temporary working copies
func WithWorkDir(dir string) Option {
	return func(s *service) {
		s.workDir = dir
	}
}

// WithClock overrides the clock used for branch names
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// WithPullRequestsAsUser opens pull requests with the caller's own GitHub
// token, looked up through tokens, instead of the service token
func WithPullRequestsAsUser(tokens UserTokenSource, factory OpenerFactory) Option {
	return func(s *service) {
		s.userTokens = tokens
		s.asUser = factory
	}
}

// WithAutoMerge states in the pull request body that a verified pull request
// is merged automatically
func WithAutoMerge(enabled bool) Option {
	return func(s *service) {
		s.autoMerge = enabled
	}
}

// WithMetrics records publication durations
func WithMetrics(m *telemetry.PipelineMetrics) Option {
	return func(s *service) {
		s.metrics = m
	}
}

// WithTracer enables spans for each publication step
func WithTracer(tracer trace.Tracer) Option {
	return func(s *service) {
		s.tracer = tracer
	}
}

// NewService creates a publication service
func NewService(gitClient git.Client, opener PullRequestOpener, remoteURL RemoteURLFunc, opts ...Option) Service {
	s := &service{
		git:       gitClient,
		opener:    opener,
		remoteURL: remoteURL,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish proposes req.Files as a pull request against the experiment's
// repository. If the branch is pushed but the pull request cannot be opened
// the branch stays on the remote.
func (s *service) Publish(ctx context.Context, req Request) (result *Result, err error) {
	start := time.Now()
	publishID := s.newID()
	repoName := proposal.RepoName(req.Username, req.Experiment)

	ctx, span := otel.StartSpan(ctx, s.tracer, "publish",
		trace.WithAttributes(
			otel.AttrUsername.String(req.Username),
			otel.AttrExperiment.String(req.Experiment),
			otel.AttrRepository.String(repoName),
			otel.AttrFileCount.Int(len(req.Files)),
		))
	defer span.End()
	defer func() {
		otel.RecordError(span, err)
		s.metrics.RecordPublish(ctx, time.Since(start), err == nil)
	}()

	files, err := validate(req)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(s.workDir, "heda-publish-")
	if err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			logger.Warnf("Failed to remove working directory %s: %v", dir, rmErr)
		}
	}()

	repo, err := s.clone(ctx, repoName, dir)
	if err != nil {
		return nil, err
	}
	if err := s.writeFiles(ctx, dir, files); err != nil {
		return nil, err
	}
	hash, err := s.hash(ctx, dir)
	if err != nil {
		return nil, err
	}

	branch := proposal.BranchName(s.now(), hash)
	span.SetAttributes(otel.AttrProposalHash.String(hash), otel.AttrBranch.String(branch))

	if err := s.commit(ctx, repo, branch, hash); err != nil {
		return nil, err
	}
	if err := s.push(ctx, repo, branch); err != nil {
		return nil, err
	}

	pr, err := s.openPullRequest(ctx, req, repoName, pullRequestData{
		Experiment: req.Experiment,
		Username:   req.Username,
		Hash:       hash,
		Branch:     branch,
		FileCount:  len(files),
		PublishID:  publishID,
		AutoMerge:  s.autoMerge,
	})
	if err != nil {
		logger.Errorf("Branch %s was pushed to %s but no pull request was opened (publish %s): %v",
			branch, repoName, publishID, err)
		return nil, fmt.Errorf("%w for branch %s: %w", ErrPullRequest, branch, err)
	}

	logger.Infof("Published %d file(s) to %s as %s, pull request #%d (publish %s)",
		len(files), repoName, branch, pr.Number, publishID)
	return &Result{
		ExperimentID: hash,
		PRURL:        pr.HTMLURL,
		BranchName:   branch,
		PRNumber:     pr.Number,
		PublishID:    publishID,
	}, nil
}

// validate checks the names in req and returns its files with cleaned paths
func validate(req Request) ([]proposal.File, error) {
	if err := proposal.ValidateUsername(req.Username); err != nil {
		return nil, err
	}
	if err := proposal.ValidateExperimentName(req.Experiment); err != nil {
		return nil, err
	}
	if len(req.Files) == 0 {
		return nil, ErrNoFiles
	}

	seen := make(map[string]struct{}, len(req.Files))
	files := make([]proposal.File, 0, len(req.Files))
	for _, f := range req.Files {
		clean, err := proposal.CleanPath(f.Path)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[clean]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePath, clean)
		}
		seen[clean] = struct{}{}
		files = append(files, proposal.File{Path: clean, Content: f.Content})
	}
	return files, nil
}

func (s *service) clone(ctx context.Context, repoName, dir string) (git.Repository, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "publish.clone")
	defer span.End()

	repo, err := s.git.Clone(ctx, s.remoteURL(repoName), dir)
	if err != nil {
		otel.RecordError(span, err)
		if errors.Is(err, git.ErrRepositoryNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRepoNotFound, repoName)
		}
		return nil, err
	}
	return repo, nil
}

// writeFiles writes files below dir through an os.Root, so a symlink in the
// cloned tree cannot redirect a write outside the working copy
func (s *service) writeFiles(ctx context.Context, dir string, files []proposal.File) (err error) {
	_, span := otel.StartSpan(ctx, s.tracer, "publish.write_files")
	defer span.End()
	defer func() { otel.RecordError(span, err) }()

	root, err := os.OpenRoot(dir)
	if err != nil {
		return fmt.Errorf("failed to open working copy: %w", err)
	}
	defer root.Close()

	for _, f := range files {
		name := filepath.FromSlash(f.Path)
		if parent := path.Dir(f.Path); parent != "." {
			if err := root.MkdirAll(filepath.FromSlash(parent), 0750); err != nil {
				return fmt.Errorf("failed to create directory for %s: %w", f.Path, err)
			}
		}
		if err := root.WriteFile(name, f.Content, 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
	}
	return nil
}

func (s *service) hash(ctx context.Context, dir string) (string, error) {
	_, span := otel.StartSpan(ctx, s.tracer, "publish.hash")
	defer span.End()

	hash, err := proposal.HashDir(dir)
	if err != nil {
		otel.RecordError(span, err)
		return "", err
	}
	return hash, nil
}

func (s *service) commit(ctx context.Context, repo git.Repository, branch, hash string) (err error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "publish.commit")
	defer span.End()
	defer func() { otel.RecordError(span, err) }()

	if err := repo.CheckoutNewBranch(ctx, branch); err != nil {
		return err
	}
	if err := repo.AddAll(ctx); err != nil {
		return err
	}
	if err := repo.Commit(ctx, fmt.Sprintf(CommitMessageFormat, hash)); err != nil {
		if errors.Is(err, git.ErrNothingToCommit) {
			return ErrNoChanges
		}
		return err
	}
	return nil
}

func (s *service) push(ctx context.Context, repo git.Repository, branch string) error {
	ctx, span := otel.StartSpan(ctx, s.tracer, "publish.push")
	defer span.End()

	if err := repo.Push(ctx, branch); err != nil {
		otel.RecordError(span, err)
		return err
	}
	return nil
}

func (s *service) openPullRequest(
	ctx context.Context, req Request, repoName string, data pullRequestData,
) (pr *github.PullRequest, err error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "publish.open_pr")
	defer span.End()
	defer func() { otel.RecordError(span, err) }()

	title, body, err := renderPullRequest(data)
	if err != nil {
		return nil, err
	}
	opener, err := s.openerFor(ctx, req)
	if err != nil {
		return nil, err
	}

	pr, err = opener.CreatePullRequest(ctx, repoName, github.NewPullRequest{
		Title: title,
		Head:  data.Branch,
		Base:  BaseBranch,
		Body:  body,
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(otel.AttrPullRequest.Int(pr.Number))
	return pr, nil
}

// openerFor picks the caller's own token when pull requests are opened as
// the user and the caller has a verified subject
func (s *service) openerFor(ctx context.Context, req Request) (PullRequestOpener, error) {
	if s.userTokens == nil || s.asUser == nil {
		return s.opener, nil
	}
	if req.UserID == "" {
		logger.Warnf("No verified subject for %s, opening pull request with the service token", req.Username)
		return s.opener, nil
	}
	token, err := s.userTokens.GitHubToken(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get GitHub token for %s: %w", req.Username, err)
	}
	return s.asUser(token), nil
}
