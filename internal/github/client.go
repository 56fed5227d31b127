// Package github is a small GitHub REST v3 client covering the calls the
// GitOps backend makes: repository creation and protection, pull requests,
// organization membership and invitations, and GitHub App installation tokens.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/heda-org/heda-gitops/internal/httpclient"
)

const (
	// DefaultBaseURL is the public GitHub API
	DefaultBaseURL = "https://api.github.com"

	mediaType  = "application/vnd.github+json"
	apiVersion = "2022-11-28"
)

var (
	// ErrUserNotFound is returned when a GitHub login does not exist
	ErrUserNotFound = errors.New("github user not found")

	// ErrNotMergeable is returned when GitHub refuses to merge a pull request
	ErrNotMergeable = errors.New("pull request is not mergeable")
)

// Client calls the GitHub REST API on behalf of one token
type Client struct {
	http    *httpclient.Client
	baseURL string
	org     string
	token   string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the transport used for API calls
func WithHTTPClient(hc *httpclient.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient returns a client for org authenticated with token
func NewClient(baseURL, org, token string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		http:    httpclient.New(httpclient.DefaultTimeout),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		org:     org,
		token:   token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken returns a copy of the client that authenticates with token
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Org returns the organization the client manages
func (c *Client) Org() string {
	return c.org
}

func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.baseURL + "/" + strings.Join(escaped, "/")
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any, accepted ...int) (int, error) {
	header := http.Header{}
	header.Set("Accept", mediaType)
	header.Set("X-GitHub-Api-Version", apiVersion)
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(ctx, httpclient.Request{
		Method:   method,
		URL:      endpoint,
		Header:   header,
		Body:     body,
		Accepted: accepted,
	}, out)
}

// User is a GitHub account
type User struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Type  string `json:"type"`
}

// GetUser looks up a login
func (c *Client) GetUser(ctx context.Context, login string) (*User, error) {
	var user User
	if _, err := c.do(ctx, http.MethodGet, c.endpoint("users", login), nil, &user); err != nil {
		if httpclient.StatusCode(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, login)
		}
		return nil, fmt.Errorf("failed to look up user %s: %w", login, err)
	}
	return &user, nil
}

// InviteToOrg invites a user id to the organization with role
func (c *Client) InviteToOrg(ctx context.Context, userID int64, role string) error {
	body := map[string]any{"invitee_id": userID, "role": role}
	if _, err := c.do(ctx, http.MethodPost, c.endpoint("orgs", c.org, "invitations"), body, nil); err != nil {
		return fmt.Errorf("failed to invite user %d to %s: %w", userID, c.org, err)
	}
	return nil
}

// IsOrgMember reports whether login is a member of the organization.
// GitHub answers 204 for members and 404 for non-members; 302 means the
// token cannot see private membership, which is treated as not a member.
func (c *Client) IsOrgMember(ctx context.Context, login string) (bool, error) {
	status, err := c.do(ctx, http.MethodGet, c.endpoint("orgs", c.org, "members", login), nil, nil,
		http.StatusNoContent, http.StatusNotFound, http.StatusFound)
	if err != nil {
		return false, fmt.Errorf("failed to check membership of %s in %s: %w", login, c.org, err)
	}
	return status == http.StatusNoContent, nil
}

// CreateRepoRequest describes a new organization repository
type CreateRepoRequest struct {
	Name             string `json:"name"`
	Description      string `json:"description,omitempty"`
	Private          bool   `json:"private"`
	AutoInit         bool   `json:"auto_init"`
	AllowSquashMerge bool   `json:"allow_squash_merge"`
	AllowMergeCommit bool   `json:"allow_merge_commit"`
	AllowRebaseMerge bool   `json:"allow_rebase_merge"`
}

// Repository is a GitHub repository
type Repository struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	HTMLURL       string `json:"html_url"`
	CloneURL      string `json:"clone_url"`
	DefaultBranch string `json:"default_branch"`
}

// CreateOrgRepo creates a repository in the organization
func (c *Client) CreateOrgRepo(ctx context.Context, req CreateRepoRequest) (*Repository, error) {
	var repo Repository
	if _, err := c.do(ctx, http.MethodPost, c.endpoint("orgs", c.org, "repos"), req, &repo); err != nil {
		return nil, fmt.Errorf("failed to create repository %s/%s: %w", c.org, req.Name, err)
	}
	return &repo, nil
}

// StatusChecks lists the checks that must pass before merging
type StatusChecks struct {
	Strict   bool     `json:"strict"`
	Contexts []string `json:"contexts"`
}

// BranchProtection is the body of the branch protection endpoint. Nil
// pointers are sent as JSON null, which disables that rule.
type BranchProtection struct {
	RequiredStatusChecks       *StatusChecks `json:"required_status_checks"`
	EnforceAdmins              bool          `json:"enforce_admins"`
	RequiredPullRequestReviews *struct{}     `json:"required_pull_request_reviews"`
	Restrictions               *struct{}     `json:"restrictions"`
	RequiredLinearHistory      bool          `json:"required_linear_history"`
	AllowForcePushes           bool          `json:"allow_force_pushes"`
	AllowDeletions             bool          `json:"allow_deletions"`
}

// StrictProtection requires the given checks on an up-to-date branch,
// enforces the rules for admins and keeps history linear
func StrictProtection(checks ...string) BranchProtection {
	return BranchProtection{
		RequiredStatusChecks:  &StatusChecks{Strict: true, Contexts: checks},
		EnforceAdmins:         true,
		RequiredLinearHistory: true,
	}
}

// ProtectBranch applies protection rules to a branch of an organization repository
func (c *Client) ProtectBranch(ctx context.Context, repo, branch string, p BranchProtection) error {
	endpoint := c.endpoint("repos", c.org, repo, "branches", branch, "protection")
	if _, err := c.do(ctx, http.MethodPut, endpoint, p, nil); err != nil {
		return fmt.Errorf("failed to protect %s on %s/%s: %w", branch, c.org, repo, err)
	}
	return nil
}

// NewPullRequest describes a pull request to open
type NewPullRequest struct {
	Title string `json:"title"`
	Head  string `json:"head"`
	Base  string `json:"base"`
	Body  string `json:"body"`
}

// PullRequest is a GitHub pull request
type PullRequest struct {
	Number    int    `json:"number"`
	HTMLURL   string `json:"html_url"`
	State     string `json:"state"`
	Mergeable *bool  `json:"mergeable"`
	Head      struct {
		Ref string `json:"ref"`
		SHA string `json:"sha"`
	} `json:"head"`
}

// CreatePullRequest opens a pull request on an organization repository
func (c *Client) CreatePullRequest(ctx context.Context, repo string, pr NewPullRequest) (*PullRequest, error) {
	var created PullRequest
	if _, err := c.do(ctx, http.MethodPost, c.endpoint("repos", c.org, repo, "pulls"), pr, &created); err != nil {
		return nil, fmt.Errorf("failed to open pull request %s -> %s on %s/%s: %w", pr.Head, pr.Base, c.org, repo, err)
	}
	return &created, nil
}

// ListPullRequestsForCommit returns the pull requests containing a commit
func (c *Client) ListPullRequestsForCommit(ctx context.Context, owner, repo, sha string) ([]PullRequest, error) {
	var prs []PullRequest
	endpoint := c.endpoint("repos", owner, repo, "commits", sha, "pulls")
	if _, err := c.do(ctx, http.MethodGet, endpoint, nil, &prs); err != nil {
		return nil, fmt.Errorf("failed to list pull requests for %s: %w", sha, err)
	}
	return prs, nil
}

// GetPullRequest fetches a pull request by number
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	var pr PullRequest
	endpoint := c.endpoint("repos", owner, repo, "pulls", strconv.Itoa(number))
	if _, err := c.do(ctx, http.MethodGet, endpoint, nil, &pr); err != nil {
		return nil, fmt.Errorf("failed to get pull request #%d: %w", number, err)
	}
	return &pr, nil
}

// MergeResult is the response of a merge
type MergeResult struct {
	SHA     string `json:"sha"`
	Merged  bool   `json:"merged"`
	Message string `json:"message"`
}

// MergePullRequest merges a pull request with method ("merge", "squash" or "rebase")
func (c *Client) MergePullRequest(ctx context.Context, owner, repo string, number int, method string) (*MergeResult, error) {
	var result MergeResult
	endpoint := c.endpoint("repos", owner, repo, "pulls", strconv.Itoa(number), "merge")
	if _, err := c.do(ctx, http.MethodPut, endpoint, map[string]string{"merge_method": method}, &result); err != nil {
		switch httpclient.StatusCode(err) {
		case http.StatusMethodNotAllowed, http.StatusConflict:
			return nil, fmt.Errorf("%w: #%d: %w", ErrNotMergeable, number, err)
		}
		return nil, fmt.Errorf("failed to merge pull request #%d: %w", number, err)
	}
	return &result, nil
}
