package auth

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidCredentials is returned for unknown users and bad passwords
// alike, so login failures don't leak which half was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// UserConfig is one statically configured gateway user.
type UserConfig struct {
	Username     string   `yaml:"username" env:"LIGHTHOUSE_AUTH_USERNAME"`
	PasswordHash string   `yaml:"password_hash" env:"LIGHTHOUSE_AUTH_PASSWORD_HASH"`
	Roles        []string `yaml:"roles"`
}

// Config holds the gateway auth settings.
type Config struct {
	Enabled        bool          `yaml:"enabled" env:"LIGHTHOUSE_AUTH_ENABLED"`
	PrivateKeyFile string        `yaml:"private_key_file" env:"LIGHTHOUSE_AUTH_KEY_FILE"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl" env:"LIGHTHOUSE_AUTH_TOKEN_TTL"`
	Users          []UserConfig  `yaml:"users"`
}

// DefaultConfig returns the auth defaults. Auth is off until users are
// configured.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		PrivateKeyFile: "data/auth_key.pem",
		AccessTokenTTL: time.Hour,
	}
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.PrivateKeyFile == "" {
		c.PrivateKeyFile = "data/auth_key.pem"
	}
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = time.Hour
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Users) == 0 {
		return errors.New("auth enabled but no users configured")
	}
	for _, u := range c.Users {
		if u.Username == "" || u.PasswordHash == "" {
			return fmt.Errorf("auth user %q missing username or password_hash", u.Username)
		}
	}
	return nil
}

// Service authenticates configured users and issues tokens.
type Service struct {
	tokens *TokenService
	users  map[string]UserConfig
}

// NewService builds the auth service from config.
func NewService(cfg Config) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tokens, err := NewTokenService(cfg.PrivateKeyFile, cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	users := make(map[string]UserConfig, len(cfg.Users))
	for _, u := range cfg.Users {
		users[u.Username] = u
	}
	return &Service{tokens: tokens, users: users}, nil
}

// Login verifies credentials and returns a signed access token.
func (s *Service) Login(username, password string) (string, time.Time, error) {
	user, ok := s.users[username]
	if !ok {
		return "", time.Time{}, ErrInvalidCredentials
	}
	match, err := VerifyPassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return s.tokens.GenerateToken(user.Username, user.Roles)
}

// Verify validates an access token and returns its claims.
func (s *Service) Verify(token string) (*Claims, error) {
	return s.tokens.ValidateToken(token)
}
