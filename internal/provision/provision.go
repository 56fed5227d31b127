// Package provision creates per-experiment GitOps repositories: an empty
// organization repository seeded with the verification workflows on a
// protected main branch.
package provision

//go:generate mockgen -destination=mocks/mock_provision.go -package=mocks -source=provision.go

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/heda-org/heda-gitops/internal/git"
	"github.com/heda-org/heda-gitops/internal/github"
	"github.com/heda-org/heda-gitops/internal/logger"
	"github.com/heda-org/heda-gitops/internal/otel"
	"github.com/heda-org/heda-gitops/internal/proposal"
	"github.com/heda-org/heda-gitops/internal/telemetry"
)

const (
	// MainBranch is the protected branch proposals merge into
	MainBranch = "main"

	// RequiredCheck is the status check main requires, the job name in pr-verify.yml
	RequiredCheck = "verify"

	// InitialCommitMessage is the message of the seed commit
	InitialCommitMessage = "chore: initialize GitOps policy"

	workflowDir = ".github/workflows"
)

//go:embed templates/*.yml
var templates embed.FS

// Workflows lists the seeded workflow files by name
var Workflows = []string{"pr-verify.yml", "main-finalize.yml"}

var (
	// ErrRepoCreation is returned when GitHub refuses to create the repository
	ErrRepoCreation = errors.New("failed to create repository")

	// ErrSeed is returned when the initial commit cannot be pushed
	ErrSeed = errors.New("failed to initialize GitOps repository")

	// ErrBranchProtection is returned when main cannot be protected
	ErrBranchProtection = errors.New("failed to protect main branch")
)

// RepoHost is the slice of the GitHub API provisioning relies on
type RepoHost interface {
	CreateOrgRepo(ctx context.Context, req github.CreateRepoRequest) (*github.Repository, error)
	ProtectBranch(ctx context.Context, repo, branch string, protection github.BranchProtection) error
}

// Result describes a provisioned repository
type Result struct {
	RepoName string `json:"repo_name"`
	RepoURL  string `json:"repo_url"`
}

// Service provisions GitOps repositories
type Service interface {
	Provision(ctx context.Context, username, experiment string) (*Result, error)
}

type service struct {
	host    RepoHost
	git     git.Client
	workDir string
	metrics *telemetry.PipelineMetrics
	tracer  trace.Tracer
}

// Option configures the provisioning service
type Option func(*service)

// WithWorkDir sets the parent directory of temporary working copies
func WithWorkDir(dir string) Option {
	return func(s *service) {
		s.workDir = dir
	}
}

// WithMetrics records provisioning durations
func WithMetrics(m *telemetry.PipelineMetrics) Option {
	return func(s *service) {
		s.metrics = m
	}
}

// WithTracer enables spans for each provisioning step
func WithTracer(tracer trace.Tracer) Option {
	return func(s *service) {
		s.tracer = tracer
	}
}

// NewService creates a provisioning service
func NewService(host RepoHost, gitClient git.Client, opts ...Option) Service {
	s := &service{host: host, git: gitClient}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provision creates {username}-{experiment}, pushes the workflow seed
// commit to main and protects main. A failure part way leaves whatever was
// already created on GitHub in place.
func (s *service) Provision(ctx context.Context, username, experiment string) (result *Result, err error) {
	start := time.Now()
	repoName := proposal.RepoName(username, experiment)

	ctx, span := otel.StartSpan(ctx, s.tracer, "provision",
		trace.WithAttributes(
			otel.AttrUsername.String(username),
			otel.AttrExperiment.String(experiment),
			otel.AttrRepository.String(repoName),
		))
	defer span.End()
	defer func() {
		otel.RecordError(span, err)
		s.metrics.RecordProvision(ctx, time.Since(start), err == nil)
	}()

	if err := proposal.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := proposal.ValidateExperimentName(experiment); err != nil {
		return nil, err
	}

	repo, err := s.createRepo(ctx, username, experiment, repoName)
	if err != nil {
		return nil, err
	}
	if err := s.seed(ctx, repo.CloneURL); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrSeed, repoName, err)
	}
	if err := s.protect(ctx, repoName); err != nil {
		return nil, err
	}

	logger.Infof("Provisioned GitOps repository %s for %s", repo.FullName, username)
	return &Result{RepoName: repoName, RepoURL: repo.CloneURL}, nil
}

func (s *service) createRepo(ctx context.Context, username, experiment, repoName string) (*github.Repository, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "provision.create_repo")
	defer span.End()

	repo, err := s.host.CreateOrgRepo(ctx, github.CreateRepoRequest{
		Name:             repoName,
		Description:      fmt.Sprintf("HEDA GitOps repo for %s/%s", username, experiment),
		Private:          false,
		AutoInit:         false,
		AllowSquashMerge: true,
		AllowMergeCommit: true,
		AllowRebaseMerge: true,
	})
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("%w: %w", ErrRepoCreation, err)
	}
	return repo, nil
}

func (s *service) seed(ctx context.Context, remoteURL string) (err error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "provision.seed")
	defer span.End()
	defer func() { otel.RecordError(span, err) }()

	dir, err := os.MkdirTemp(s.workDir, "heda-init-")
	if err != nil {
		return fmt.Errorf("failed to create working directory: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			logger.Warnf("Failed to remove working directory %s: %v", dir, rmErr)
		}
	}()

	repo, err := s.git.Init(ctx, dir, remoteURL)
	if err != nil {
		return err
	}
	if err := WriteWorkflows(dir); err != nil {
		return err
	}
	if err := repo.AddAll(ctx); err != nil {
		return err
	}
	if err := repo.Commit(ctx, InitialCommitMessage); err != nil {
		return err
	}
	if err := repo.RenameBranch(ctx, MainBranch); err != nil {
		return err
	}
	return repo.Push(ctx, MainBranch)
}

func (s *service) protect(ctx context.Context, repoName string) error {
	ctx, span := otel.StartSpan(ctx, s.tracer, "provision.protect_branch")
	defer span.End()

	if err := s.host.ProtectBranch(ctx, repoName, MainBranch, github.StrictProtection(RequiredCheck)); err != nil {
		otel.RecordError(span, err)
		return fmt.Errorf("%w: %w", ErrBranchProtection, err)
	}
	return nil
}

// WriteWorkflows writes the embedded workflow files under dir/.github/workflows
func WriteWorkflows(dir string) error {
	target := filepath.Join(dir, filepath.FromSlash(workflowDir))
	if err := os.MkdirAll(target, 0750); err != nil {
		return fmt.Errorf("failed to create %s: %w", workflowDir, err)
	}
	for _, name := range Workflows {
		data, err := templates.ReadFile(path.Join("templates", name))
		if err != nil {
			return fmt.Errorf("failed to read workflow template %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(target, name), data, 0600); err != nil {
			return fmt.Errorf("failed to write workflow %s: %w", name, err)
		}
	}
	return nil
}
