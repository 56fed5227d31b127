package auth

//go:generate mockgen -destination=mocks/mock_verifier.go -package=mocks -source=verifier.go

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidHeader is returned when the token header cannot be decoded or has no kid
	ErrInvalidHeader = errors.New("invalid JWT header")

	// ErrTokenVerification is returned when the signature or a registered claim is invalid
	ErrTokenVerification = errors.New("token verification failed")
)

// KeyProvider resolves verification keys by key id
type KeyProvider interface {
	PublicKey(ctx context.Context, kid string) (any, error)
}

// TokenVerifier validates a raw bearer token and returns its claims
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (jwt.MapClaims, error)
}

// Verifier checks RS256 tokens against a key provider, an issuer and an audience
type Verifier struct {
	keys   KeyProvider
	parser *jwt.Parser
}

// NewVerifier returns a verifier requiring iss == issuer, aud containing
// audience and a present, unexpired exp.
func NewVerifier(keys KeyProvider, issuer, audience string) *Verifier {
	return &Verifier{
		keys: keys,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify parses and validates token
func (v *Verifier) Verify(ctx context.Context, token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, ErrInvalidHeader
		}
		return v.keys.PublicKey(ctx, kid)
	})
	if err == nil {
		return claims, nil
	}

	switch {
	case errors.Is(err, ErrKeyNotFound), errors.Is(err, ErrKeySetUnavailable), errors.Is(err, ErrInvalidHeader):
		return nil, err
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	default:
		return nil, fmt.Errorf("%w: %w", ErrTokenVerification, err)
	}
}
