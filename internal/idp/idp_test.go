package idp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserInfo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		status       int
		body         string
		wantNickname string
		wantErr      string
	}{
		{
			name:         "nickname resolved",
			status:       http.StatusOK,
			body:         `{"sub": "github|583231", "nickname": "octocat", "name": "The Octocat"}`,
			wantNickname: "octocat",
		},
		{
			name:    "missing nickname",
			status:  http.StatusOK,
			body:    `{"sub": "github|583231"}`,
			wantErr: ErrNoNickname.Error(),
		},
		{
			name:    "token rejected",
			status:  http.StatusUnauthorized,
			body:    `{"error": "invalid_token", "error_description": "Invalid token"}`,
			wantErr: "Invalid token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var gotAuth string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				if r.URL.Path != "/userinfo" {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			info, err := NewClient("unused.example", WithBaseURL(srv.URL)).UserInfo(context.Background(), "access-token")
			assert.Equal(t, "Bearer access-token", gotAuth)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantNickname, info.Nickname)
			assert.Equal(t, "github|583231", info.Subject)
		})
	}
}

func TestUserInfo_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient("", WithBaseURL(srv.URL)).UserInfo(ctx, "tok")
	assert.Error(t, err)
}

func TestNewClient_DefaultsToDomain(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://tenant.eu.auth0.com", NewClient("tenant.eu.auth0.com").baseURL)
	assert.Equal(t, "http://127.0.0.1:9999", NewClient("x", WithBaseURL("http://127.0.0.1:9999/")).baseURL)
}
