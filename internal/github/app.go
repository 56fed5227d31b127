package github

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/heda-org/heda-gitops/internal/httpclient"
)

const (
	// appJWTBackdate compensates for clock drift between us and GitHub
	appJWTBackdate = 60 * time.Second
	// appJWTLifetime is the longest lifetime GitHub accepts for an App JWT
	appJWTLifetime = 10 * time.Minute
)

// AppTokenSource mints GitHub App JWTs and exchanges them for installation tokens
type AppTokenSource struct {
	appID   int64
	key     *rsa.PrivateKey
	http    *httpclient.Client
	baseURL string
	now     func() time.Time
}

// AppOption configures an AppTokenSource
type AppOption func(*AppTokenSource)

// WithClock overrides the time source used for JWT claims
func WithClock(now func() time.Time) AppOption {
	return func(s *AppTokenSource) {
		s.now = now
	}
}

// WithAppHTTPClient replaces the transport used for token exchange
func WithAppHTTPClient(hc *httpclient.Client) AppOption {
	return func(s *AppTokenSource) {
		s.http = hc
	}
}

// NewAppTokenSource builds a token source from a PEM encoded RSA private key
func NewAppTokenSource(baseURL string, appID int64, keyPEM []byte, opts ...AppOption) (*AppTokenSource, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GitHub App private key: %w", err)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	s := &AppTokenSource{
		appID:   appID,
		key:     key,
		http:    httpclient.New(httpclient.DefaultTimeout),
		baseURL: baseURL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// LoadAppTokenSource reads the private key from keyPath
func LoadAppTokenSource(baseURL string, appID int64, keyPath string, opts ...AppOption) (*AppTokenSource, error) {
	keyPEM, err := os.ReadFile(filepath.Clean(keyPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read GitHub App private key: %w", err)
	}
	return NewAppTokenSource(baseURL, appID, keyPEM, opts...)
}

// AppJWT returns a short lived RS256 JWT identifying the App
func (s *AppTokenSource) AppJWT() (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-appJWTBackdate)),
		ExpiresAt: jwt.NewNumericDate(now.Add(appJWTLifetime)),
		Issuer:    strconv.FormatInt(s.appID, 10),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign GitHub App JWT: %w", err)
	}
	return signed, nil
}

// InstallationToken exchanges an App JWT for an installation access token
func (s *AppTokenSource) InstallationToken(ctx context.Context, installationID int64) (string, error) {
	appJWT, err := s.AppJWT()
	if err != nil {
		return "", err
	}

	var out struct {
		Token string `json:"token"`
	}
	header := http.Header{}
	header.Set("Accept", mediaType)
	header.Set("X-GitHub-Api-Version", apiVersion)
	header.Set("Authorization", "Bearer "+appJWT)

	endpoint := fmt.Sprintf("%s/app/installations/%d/access_tokens", s.baseURL, installationID)
	if _, err := s.http.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    endpoint,
		Header: header,
	}, &out); err != nil {
		return "", fmt.Errorf("failed to get installation token for %d: %w", installationID, err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("installation token response for %d has no token", installationID)
	}
	return out.Token, nil
}
