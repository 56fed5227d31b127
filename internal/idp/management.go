package idp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/heda-org/heda-gitops/internal/httpclient"
)

// ManagementTimeout bounds management API calls, including the token exchange
const ManagementTimeout = 10 * time.Second

var (
	// ErrNoGitHubIdentity is returned when the user has no linked GitHub identity
	ErrNoGitHubIdentity = errors.New("user has no GitHub identity")

	// ErrNoGitHubToken is returned when the GitHub identity carries no access token
	ErrNoGitHubToken = errors.New("GitHub identity has no access token")
)

// ManagementClient calls the provider management API with client credentials
type ManagementClient struct {
	http    *httpclient.Client
	baseURL string
}

// NewManagementClient returns a client authenticating with clientID and
// clientSecret. baseURL is the provider origin, e.g. "https://tenant.auth0.com".
// Tokens are obtained lazily and reused until they expire.
func NewManagementClient(ctx context.Context, baseURL, clientID, clientSecret string) *ManagementClient {
	cc := &clientcredentials.Config{
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		TokenURL:       baseURL + "/oauth/token",
		EndpointParams: url.Values{"audience": {baseURL + "/api/v2/"}},
		AuthStyle:      oauth2.AuthStyleInParams,
	}
	hc := cc.Client(context.WithoutCancel(ctx))
	hc.Timeout = ManagementTimeout

	return &ManagementClient{
		http:    httpclient.New(ManagementTimeout, httpclient.WithHTTPClient(hc)),
		baseURL: baseURL,
	}
}

// GitHubToken returns the GitHub access token stored on the user's linked
// GitHub identity. userID is the full subject, e.g. "github|12345".
func (m *ManagementClient) GitHubToken(ctx context.Context, userID string) (string, error) {
	var raw json.RawMessage
	endpoint := m.baseURL + "/api/v2/users/" + url.PathEscape(userID)
	if _, err := m.http.Do(ctx, httpclient.Request{Method: http.MethodGet, URL: endpoint}, &raw); err != nil {
		return "", fmt.Errorf("failed to fetch user %s from management API: %w", userID, err)
	}

	identity := gjson.GetBytes(raw, `identities.#(provider=="github")`)
	if !identity.Exists() {
		return "", fmt.Errorf("%w: %s", ErrNoGitHubIdentity, userID)
	}
	token := identity.Get("access_token").String()
	if token == "" {
		return "", fmt.Errorf("%w: %s", ErrNoGitHubToken, userID)
	}
	return token, nil
}
