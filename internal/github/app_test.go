package github

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKeyPEM(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
}

func TestAppJWTClaims(t *testing.T) {
	t.Parallel()

	key, keyPEM := generateKeyPEM(t)
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	src, err := NewAppTokenSource("", 12345, keyPEM, WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	signed, err := src.AppJWT()
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithTimeFunc(func() time.Time { return now }))
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	assert.Equal(t, "12345", claims.Issuer)
	// NumericDate decodes into time.Local
	assert.Equal(t, now.Add(-60*time.Second), claims.IssuedAt.UTC())
	assert.Equal(t, now.Add(600*time.Second), claims.ExpiresAt.UTC())
}

func TestInstallationToken(t *testing.T) {
	t.Parallel()

	_, keyPEM := generateKeyPEM(t)
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"token": "ghs_installation", "expires_at": "2025-05-01T13:00:00Z"}`))
	}))
	t.Cleanup(srv.Close)

	src, err := NewAppTokenSource(srv.URL, 99, keyPEM)
	require.NoError(t, err)

	token, err := src.InstallationToken(context.Background(), 555)
	require.NoError(t, err)
	assert.Equal(t, "ghs_installation", token)
	assert.Equal(t, "/app/installations/555/access_tokens", gotPath)
	assert.True(t, strings.HasPrefix(gotAuth, "Bearer ey"), "expected an App JWT, got %q", gotAuth)
}

func TestInstallationToken_Failure(t *testing.T) {
	t.Parallel()

	_, keyPEM := generateKeyPEM(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message": "A JSON web token could not be decoded"}`))
	}))
	t.Cleanup(srv.Close)

	src, err := NewAppTokenSource(srv.URL, 99, keyPEM)
	require.NoError(t, err)

	_, err = src.InstallationToken(context.Background(), 555)
	assert.ErrorContains(t, err, "could not be decoded")
}

func TestLoadAppTokenSource(t *testing.T) {
	t.Parallel()

	_, keyPEM := generateKeyPEM(t)
	path := filepath.Join(t.TempDir(), "app.pem")
	require.NoError(t, os.WriteFile(path, keyPEM, 0600))

	src, err := LoadAppTokenSource("", 1, path)
	require.NoError(t, err)
	assert.NotNil(t, src)

	_, err = LoadAppTokenSource("", 1, filepath.Join(t.TempDir(), "missing.pem"))
	assert.ErrorContains(t, err, "failed to read GitHub App private key")

	_, err = NewAppTokenSource("", 1, []byte("not a key"))
	assert.ErrorContains(t, err, "failed to parse GitHub App private key")
}
