package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"golang.org/x/sync/singleflight"

	"github.com/heda-org/heda-gitops/internal/httpclient"
	"github.com/heda-org/heda-gitops/internal/logger"
)

var (
	// ErrKeyNotFound is returned when no key in the set matches the token's kid
	ErrKeyNotFound = errors.New("public key not found")

	// ErrKeySetUnavailable is returned when the key set cannot be fetched
	ErrKeySetUnavailable = errors.New("signing key set unavailable")
)

// KeySource serves RSA verification keys from a remote JWKS document.
// The document is fetched on first use and kept for the life of the process
// unless a refresh interval is set. Concurrent first fetches are collapsed
// into a single request.
type KeySource struct {
	url     string
	http    *httpclient.Client
	refresh time.Duration
	now     func() time.Time

	group     singleflight.Group
	mu        sync.RWMutex
	set       jwk.Set
	fetchedAt time.Time
}

// KeySourceOption configures a KeySource
type KeySourceOption func(*KeySource)

// WithRefreshInterval refetches the key set once it is older than d
func WithRefreshInterval(d time.Duration) KeySourceOption {
	return func(k *KeySource) {
		k.refresh = d
	}
}

// WithKeySourceHTTPClient replaces the transport used to fetch the key set
func WithKeySourceHTTPClient(hc *httpclient.Client) KeySourceOption {
	return func(k *KeySource) {
		k.http = hc
	}
}

// NewKeySource returns a key source for the JWKS document at url
func NewKeySource(url string, opts ...KeySourceOption) *KeySource {
	k := &KeySource{
		url:  url,
		http: httpclient.New(httpclient.DefaultTimeout),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// PublicKey returns the RSA key identified by kid
func (k *KeySource) PublicKey(ctx context.Context, kid string) (any, error) {
	set, err := k.keySet(ctx)
	if err != nil {
		return nil, err
	}

	key, ok := set.LookupKeyID(kid)
	if !ok {
		return nil, fmt.Errorf("%w: kid %q", ErrKeyNotFound, kid)
	}

	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, fmt.Errorf("failed to export key %q: %w", kid, err)
	}
	pub, ok := raw.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: kid %q is %T, not an RSA public key", ErrKeyNotFound, kid, raw)
	}
	return pub, nil
}

func (k *KeySource) keySet(ctx context.Context) (jwk.Set, error) {
	k.mu.RLock()
	set, fetchedAt := k.set, k.fetchedAt
	k.mu.RUnlock()

	if set != nil && (k.refresh == 0 || k.now().Sub(fetchedAt) < k.refresh) {
		return set, nil
	}

	// the fetch is shared with every waiter, so one caller going away must not
	// fail it for the others; the HTTP client timeout still bounds it
	v, err, _ := k.group.Do(k.url, func() (any, error) {
		fresh, err := k.fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		k.mu.Lock()
		k.set, k.fetchedAt = fresh, k.now()
		k.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		if set != nil {
			// keep serving the previous set when a refresh fails
			logger.Warnf("auth: key set refresh failed, using cached keys: %v", err)
			return set, nil
		}
		return nil, err
	}
	return v.(jwk.Set), nil
}

func (k *KeySource) fetch(ctx context.Context) (jwk.Set, error) {
	var raw json.RawMessage
	if _, err := k.http.Do(ctx, httpclient.Request{Method: http.MethodGet, URL: k.url}, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeySetUnavailable, err)
	}
	set, err := jwk.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %w", ErrKeySetUnavailable, k.url, err)
	}
	logger.Debugf("auth: loaded %d signing keys from %s", set.Len(), k.url)
	return set, nil
}
