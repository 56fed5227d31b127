// Package idp talks to the identity provider (Auth0) beyond token
// validation: the userinfo endpoint used to resolve a caller's GitHub login
// and the management API used to obtain a user's linked GitHub token.
package idp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/heda-org/heda-gitops/internal/httpclient"
)

// UserInfoTimeout bounds a single userinfo lookup
const UserInfoTimeout = 5 * time.Second

// ErrNoNickname is returned when the userinfo response carries no nickname
var ErrNoNickname = errors.New("userinfo response has no nickname")

// UserInfo is the subset of the OIDC userinfo response the backend uses
type UserInfo struct {
	Subject  string `json:"sub"`
	Nickname string `json:"nickname"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Client queries the identity provider on behalf of an end user
type Client struct {
	http    *httpclient.Client
	baseURL string
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the provider origin derived from the domain
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient replaces the transport used for userinfo calls
func WithHTTPClient(hc *httpclient.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient returns a client for the provider at https://{domain}
func NewClient(domain string, opts ...Option) *Client {
	c := &Client{
		http:    httpclient.New(UserInfoTimeout),
		baseURL: "https://" + domain,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UserInfo resolves the profile of the user the access token was issued to
func (c *Client) UserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, UserInfoTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+accessToken)

	var info UserInfo
	if _, err := c.http.Do(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    c.baseURL + "/userinfo",
		Header: header,
	}, &info); err != nil {
		return nil, fmt.Errorf("failed to fetch userinfo: %w", err)
	}
	if info.Nickname == "" {
		return nil, ErrNoNickname
	}
	return &info, nil
}
