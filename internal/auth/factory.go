package auth

import (
	"fmt"
	"net/http"

	"github.com/heda-org/heda-gitops/internal/config"
	"github.com/heda-org/heda-gitops/internal/logger"
)

// NewAuthMiddleware creates authentication middleware based on config.
// userInfo resolves GitHub logins in oauth mode and is ignored otherwise.
func NewAuthMiddleware(cfg *config.AuthConfig, userInfo UserInfoResolver) (func(http.Handler) http.Handler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("auth configuration is required")
	}

	switch cfg.Mode {
	case config.AuthModeOAuth, "":
		return createOAuthMiddleware(cfg, userInfo)
	case config.AuthModeSharedSecret:
		logger.Warnf("auth: shared-secret mode, callers are trusted to name themselves")
		return SharedSecretMiddleware(cfg.SharedSecret, cfg.ExpectedProvider), nil
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", cfg.Mode)
	}
}

func createOAuthMiddleware(cfg *config.AuthConfig, userInfo UserInfoResolver) (func(http.Handler) http.Handler, error) {
	if cfg.Domain == "" || cfg.Audience == "" {
		return nil, fmt.Errorf("oauth mode requires auth.domain and auth.audience")
	}
	if userInfo == nil {
		return nil, fmt.Errorf("oauth mode requires a userinfo resolver")
	}
	refresh, err := cfg.GetJWKSRefreshInterval()
	if err != nil {
		return nil, err
	}

	keys := NewKeySource(cfg.JWKSURL(), WithRefreshInterval(refresh))
	verifier := NewVerifier(keys, cfg.Issuer(), cfg.Audience)
	m := NewBearerMiddleware(verifier, userInfo, cfg.ExpectedProvider)

	logger.Infof("auth: OAuth mode (issuer %s, audience %s)", cfg.Issuer(), cfg.Audience)
	return m.Middleware, nil
}
