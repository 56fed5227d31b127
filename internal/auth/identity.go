package auth

import "context"

// Identity is the authenticated caller attached to a request context
type Identity struct {
	// Subject is the raw "sub" claim, empty in shared-secret mode
	Subject  string
	Provider string
	UserID   string
	// Username is the caller's GitHub login
	Username string
	// AccessToken is the bearer token presented by the caller
	AccessToken string
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by the auth middleware
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}
