package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$")

	ok, err := VerifyPassword("s3cret", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	_, err := VerifyPassword("x", "not-a-hash")
	assert.Error(t, err)

	_, err = VerifyPassword("x", "$bcrypt$v=19$m=1,t=1,p=1$a$b")
	assert.Error(t, err)
}

func TestTokenService_RoundTrip(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "key.pem")
	svc, err := NewTokenService(keyFile, time.Hour)
	require.NoError(t, err)

	token, expires, err := svc.GenerateToken("alice", []string{"operator"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, []string{"operator"}, claims.Roles)

	_, err = svc.ValidateToken(token + "tampered")
	assert.Error(t, err)
}

func TestTokenService_KeyPersistsAcrossRestarts(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "key.pem")
	first, err := NewTokenService(keyFile, time.Hour)
	require.NoError(t, err)
	token, _, err := first.GenerateToken("alice", nil)
	require.NoError(t, err)

	second, err := NewTokenService(keyFile, time.Hour)
	require.NoError(t, err)
	claims, err := second.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
}

func TestService_Login(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)

	svc, err := NewService(Config{
		Enabled:        true,
		PrivateKeyFile: filepath.Join(t.TempDir(), "key.pem"),
		Users: []UserConfig{
			{Username: "ops", PasswordHash: hash, Roles: []string{"operator"}},
		},
	})
	require.NoError(t, err)

	token, _, err := svc.Login("ops", "hunter2")
	require.NoError(t, err)
	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Username)

	_, _, err = svc.Login("ops", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login("nobody", "hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Enabled: true}
	assert.Error(t, cfg.Validate(), "enabled auth requires users")

	cfg.Users = []UserConfig{{Username: "x"}}
	assert.Error(t, cfg.Validate(), "user without hash rejected")

	cfg.Enabled = false
	assert.NoError(t, cfg.Validate(), "disabled auth skips user checks")
}
