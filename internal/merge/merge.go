// Package merge squash-merges pull requests once their required check run
// succeeds. It acts on GitHub check_run webhook events using a GitHub App
// installation token, so merges are attributed to the App.
package merge

//go:generate mockgen -destination=mocks/mock_merge.go -package=mocks -source=merge.go

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/trace"

	"github.com/heda-org/heda-gitops/internal/github"
	"github.com/heda-org/heda-gitops/internal/logger"
	"github.com/heda-org/heda-gitops/internal/otel"
	"github.com/heda-org/heda-gitops/internal/telemetry"
)

// Outcomes of handling a check run event
const (
	OutcomeIgnored       = "ignored"
	OutcomeNoPullRequest = "no_pull_request"
	OutcomeNotMergeable  = "not_mergeable"
	OutcomeMerged        = "merged"
	OutcomeFailed        = "failed"
)

// MergeMethod is the merge strategy used for proposals
const MergeMethod = "squash"

// ErrInvalidPayload is returned when the event body is not JSON
var ErrInvalidPayload = errors.New("invalid check_run payload")

// TokenSource exchanges an installation id for an access token
type TokenSource interface {
	InstallationToken(ctx context.Context, installationID int64) (string, error)
}

// PullRequestAPI is the slice of the GitHub API used to merge
type PullRequestAPI interface {
	ListPullRequestsForCommit(ctx context.Context, owner, repo, sha string) ([]github.PullRequest, error)
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*github.PullRequest, error)
	MergePullRequest(ctx context.Context, owner, repo string, number int, method string) (*github.MergeResult, error)
}

// APIFactory returns a PullRequestAPI authenticated with token
type APIFactory func(token string) PullRequestAPI

// Result describes what happened to a check run event
type Result struct {
	Outcome     string `json:"outcome"`
	PullRequest int    `json:"pull_request,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Service handles check run events
type Service interface {
	HandleCheckRun(ctx context.Context, payload []byte) (*Result, error)
}

// checkRunEvent is the part of a check_run delivery the merger reads
type checkRunEvent struct {
	action         string
	conclusion     string
	owner          string
	repo           string
	headSHA        string
	installationID int64
	pullRequest    int
}

func parseCheckRun(payload []byte) (*checkRunEvent, error) {
	if !gjson.ValidBytes(payload) {
		return nil, ErrInvalidPayload
	}
	r := gjson.ParseBytes(payload)
	return &checkRunEvent{
		action:         r.Get("action").String(),
		conclusion:     r.Get("check_run.conclusion").String(),
		owner:          r.Get("repository.owner.login").String(),
		repo:           r.Get("repository.name").String(),
		headSHA:        r.Get("check_run.head_sha").String(),
		installationID: r.Get("installation.id").Int(),
		pullRequest:    int(r.Get("check_run.pull_requests.0.number").Int()),
	}, nil
}

type service struct {
	tokens  TokenSource
	api     APIFactory
	metrics *telemetry.MergeMetrics
	tracer  trace.Tracer
}

// Option configures the merge service
type Option func(*service)

// WithMetrics counts event outcomes
func WithMetrics(m *telemetry.MergeMetrics) Option {
	return func(s *service) {
		s.metrics = m
	}
}

// WithTracer enables spans around event handling
func WithTracer(tracer trace.Tracer) Option {
	return func(s *service) {
		s.tracer = tracer
	}
}

// NewService creates a merge service
func NewService(tokens TokenSource, api APIFactory, opts ...Option) Service {
	s := &service{tokens: tokens, api: api}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleCheckRun merges the pull request behind a successful check run
func (s *service) HandleCheckRun(ctx context.Context, payload []byte) (result *Result, err error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "merge.check_run")
	defer span.End()
	defer func() {
		outcome := OutcomeFailed
		if err == nil {
			outcome = result.Outcome
		} else {
			otel.RecordError(span, err)
		}
		s.metrics.RecordOutcome(ctx, outcome)
	}()

	event, err := parseCheckRun(payload)
	if err != nil {
		return nil, err
	}

	switch {
	case event.owner == "" || event.repo == "" || event.headSHA == "" || event.installationID == 0:
		return &Result{Outcome: OutcomeIgnored, Reason: "missing repository, installation or check run"}, nil
	case event.action != "completed":
		return &Result{Outcome: OutcomeIgnored, Reason: "check run " + event.action}, nil
	case event.conclusion != "success":
		return &Result{Outcome: OutcomeIgnored, Reason: "conclusion " + event.conclusion}, nil
	}
	span.SetAttributes(
		otel.AttrRepository.String(event.owner+"/"+event.repo),
		otel.AttrInstallationID.Int64(event.installationID),
	)

	token, err := s.tokens.InstallationToken(ctx, event.installationID)
	if err != nil {
		return nil, err
	}
	api := s.api(token)

	number := event.pullRequest
	if number == 0 {
		prs, err := api.ListPullRequestsForCommit(ctx, event.owner, event.repo, event.headSHA)
		if err != nil {
			return nil, err
		}
		if len(prs) == 0 {
			logger.Infof("No pull request associated with %s/%s@%s yet", event.owner, event.repo, event.headSHA)
			return &Result{Outcome: OutcomeNoPullRequest}, nil
		}
		number = prs[0].Number
	}
	span.SetAttributes(otel.AttrPullRequest.Int(number))

	pr, err := api.GetPullRequest(ctx, event.owner, event.repo, number)
	if err != nil {
		return nil, err
	}
	if pr.Mergeable == nil || !*pr.Mergeable {
		logger.Infof("Pull request %s/%s#%d is not mergeable yet", event.owner, event.repo, number)
		return &Result{Outcome: OutcomeNotMergeable, PullRequest: number}, nil
	}

	if _, err := api.MergePullRequest(ctx, event.owner, event.repo, number, MergeMethod); err != nil {
		if errors.Is(err, github.ErrNotMergeable) {
			return &Result{Outcome: OutcomeNotMergeable, PullRequest: number, Reason: err.Error()}, nil
		}
		return nil, fmt.Errorf("failed to merge %s/%s#%d: %w", event.owner, event.repo, number, err)
	}

	logger.Infof("Merged pull request %s/%s#%d", event.owner, event.repo, number)
	return &Result{Outcome: OutcomeMerged, PullRequest: number}, nil
}
