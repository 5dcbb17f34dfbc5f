package gateway

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lighthouse/internal/auth"
)

func newTestAuth(t *testing.T) (*auth.Service, string) {
	t.Helper()
	hash, err := auth.HashPassword("secret")
	require.NoError(t, err)
	svc, err := auth.NewService(auth.Config{
		Enabled:        true,
		PrivateKeyFile: filepath.Join(t.TempDir(), "key.pem"),
		Users:          []auth.UserConfig{{Username: "operator", PasswordHash: hash}},
	})
	require.NoError(t, err)
	token, _, err := svc.Login("operator", "secret")
	require.NoError(t, err)
	return svc, token
}

func TestFeedAuth(t *testing.T) {
	svc, token := newTestAuth(t)
	srv := &Server{auth: svc}

	var reached bool
	handler := srv.feedAuth(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		target     string
		authHeader string
		wantStatus int
	}{
		{"no token", "/v1/feed", "", http.StatusUnauthorized},
		{"bad query token", "/v1/feed?token=bogus", "", http.StatusUnauthorized},
		{"bad bearer", "/v1/feed", "Bearer bogus", http.StatusUnauthorized},
		{"query token", "/v1/feed?token=" + token, "", http.StatusOK},
		{"bearer token", "/v1/feed", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantStatus == http.StatusOK, reached)
		})
	}
}

func TestFeedAuthDisabled(t *testing.T) {
	srv := &Server{}

	var reached bool
	handler := srv.feedAuth(func(w http.ResponseWriter, r *http.Request) { reached = true })
	handler(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/feed", nil))

	assert.True(t, reached, "no auth configured, upgrade passes through")
}
