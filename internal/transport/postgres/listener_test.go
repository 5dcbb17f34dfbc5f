package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, time.Second, cfg.MinReconnect)
	assert.Equal(t, 30*time.Second, cfg.MaxReconnect)
	assert.Equal(t, 5*time.Minute, cfg.MaxDowntime)
}

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, time.Second, cfg.MinReconnect)
	assert.Equal(t, 30*time.Second, cfg.MaxReconnect)
	assert.Equal(t, 15*time.Second, cfg.PingInterval)
	assert.Equal(t, time.Duration(0), cfg.MaxDowntime, "zero MaxDowntime stays disabled")
}

func TestConfig_ApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{
		MinReconnect: 2 * time.Second,
		MaxReconnect: time.Minute,
		MaxDowntime:  time.Hour,
		PingInterval: time.Second,
	}
	cfg.ApplyDefaults()

	assert.Equal(t, 2*time.Second, cfg.MinReconnect)
	assert.Equal(t, time.Minute, cfg.MaxReconnect)
	assert.Equal(t, time.Hour, cfg.MaxDowntime)
	assert.Equal(t, time.Second, cfg.PingInterval)
}
