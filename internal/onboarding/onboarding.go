// Package onboarding invites GitHub users into the organization and tracks
// whether they have accepted. Every decision that leads to a side effect is
// taken inside a single ledger update, so a user is invited at most once.
package onboarding

//go:generate mockgen -destination=mocks/mock_onboarding.go -package=mocks -source=onboarding.go

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/heda-org/heda-gitops/internal/github"
	"github.com/heda-org/heda-gitops/internal/logger"
	"github.com/heda-org/heda-gitops/internal/otel"
	"github.com/heda-org/heda-gitops/internal/telemetry"

	"go.opentelemetry.io/otel/trace"
)

// Invitation states reported by Status
const (
	InvitationNone     = ""
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
)

// Outcomes of Onboard, also used as metric labels
const (
	OutcomeAlreadyInitiated = "already_initiated"
	OutcomeInvited          = "invited"
	OutcomeUserNotFound     = "user_not_found"
	OutcomeFailed           = "failed"
)

// Response messages returned by Onboard
const (
	MessageAlreadyInitiated = "Onboarding already initiated"
	MessageInvitationSent   = "Invitation sent"
)

// DefaultInviteRole is the organization role granted to invitees
const DefaultInviteRole = "direct_member"

var (
	// ErrUserNotFound is returned when the GitHub login does not exist
	ErrUserNotFound = errors.New("github user does not exist")

	// ErrInviteFailed is returned when GitHub rejects the invitation
	ErrInviteFailed = errors.New("failed to invite user")
)

// OrgDirectory is the slice of the GitHub API onboarding relies on
type OrgDirectory interface {
	GetUser(ctx context.Context, login string) (*github.User, error)
	InviteToOrg(ctx context.Context, userID int64, role string) error
	IsOrgMember(ctx context.Context, login string) (bool, error)
}

// OnboardResult is the outcome of an onboarding request
type OnboardResult struct {
	Outcome string
	Message string
}

// StatusResult reports a user's onboarding state
type StatusResult struct {
	Onboarded  bool   `json:"onboarded"`
	Invitation string `json:"invitation"`
}

// Service manages organization onboarding
type Service interface {
	Onboard(ctx context.Context, username string) (*OnboardResult, error)
	Status(ctx context.Context, username string) (*StatusResult, error)
}

type service struct {
	ledger     Ledger
	directory  OrgDirectory
	inviteRole string
	now        func() time.Time
	metrics    *telemetry.OnboardingMetrics
	tracer     trace.Tracer
}

// Option configures the onboarding service
type Option func(*service)

// WithInviteRole overrides the role granted to invitees
func WithInviteRole(role string) Option {
	return func(s *service) {
		if role != "" {
			s.inviteRole = role
		}
	}
}

// WithClock overrides the time source for invitation timestamps
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// WithMetrics records invitation outcomes
func WithMetrics(m *telemetry.OnboardingMetrics) Option {
	return func(s *service) {
		s.metrics = m
	}
}

// WithTracer enables spans around onboarding operations
func WithTracer(tracer trace.Tracer) Option {
	return func(s *service) {
		s.tracer = tracer
	}
}

// NewService creates an onboarding service
func NewService(ledger Ledger, directory OrgDirectory, opts ...Option) Service {
	s := &service{
		ledger:     ledger,
		directory:  directory,
		inviteRole: DefaultInviteRole,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Onboard invites username unless the ledger already knows the user
func (s *service) Onboard(ctx context.Context, username string) (result *OnboardResult, err error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "onboarding.onboard", trace.WithAttributes(otel.AttrUsername.String(username)))
	defer span.End()

	outcome := OutcomeInvited
	defer func() {
		if err != nil {
			otel.RecordError(span, err)
		}
		s.metrics.RecordInvitation(ctx, outcome)
	}()

	_, err = s.ledger.Update(ctx, username, func(current *Record) (*Record, error) {
		if current != nil {
			outcome = OutcomeAlreadyInitiated
			return nil, nil
		}

		user, err := s.directory.GetUser(ctx, username)
		if err != nil {
			if errors.Is(err, github.ErrUserNotFound) {
				outcome = OutcomeUserNotFound
				return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
			}
			outcome = OutcomeFailed
			return nil, err
		}

		if err := s.directory.InviteToOrg(ctx, user.ID, s.inviteRole); err != nil {
			outcome = OutcomeFailed
			return nil, fmt.Errorf("%w: %w", ErrInviteFailed, err)
		}

		return &Record{
			GitHubUsername: username,
			InvitedAt:      s.now().UTC().Truncate(time.Second),
		}, nil
	})
	if err != nil {
		return nil, err
	}

	if outcome == OutcomeAlreadyInitiated {
		return &OnboardResult{Outcome: outcome, Message: MessageAlreadyInitiated}, nil
	}
	logger.Infof("Invited %s to the organization", username)
	return &OnboardResult{Outcome: outcome, Message: MessageInvitationSent}, nil
}

// Status reports whether username has accepted the invitation, marking the
// record onboarded the first time membership is observed.
func (s *service) Status(ctx context.Context, username string) (*StatusResult, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "onboarding.status", trace.WithAttributes(otel.AttrUsername.String(username)))
	defer span.End()

	record, err := s.ledger.Get(ctx, username)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	switch {
	case record == nil:
		return &StatusResult{Onboarded: false, Invitation: InvitationNone}, nil
	case record.Onboarded:
		return &StatusResult{Onboarded: true, Invitation: InvitationNone}, nil
	}

	member, err := s.directory.IsOrgMember(ctx, username)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	if !member {
		return &StatusResult{Onboarded: false, Invitation: InvitationPending}, nil
	}

	_, err = s.ledger.Update(ctx, username, func(current *Record) (*Record, error) {
		if current == nil || current.Onboarded {
			return nil, nil
		}
		current.Onboarded = true
		return current, nil
	})
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	logger.Infof("%s accepted the organization invitation", username)
	return &StatusResult{Onboarded: true, Invitation: InvitationAccepted}, nil
}
