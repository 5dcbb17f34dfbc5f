// Package config loads and validates the application configuration.
package config

import (
	"fmt"
	"log"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"lighthouse/internal/auth"
	"lighthouse/internal/bridge"
	"lighthouse/internal/engine"
	"lighthouse/internal/gateway"
	"lighthouse/internal/simulator"
	"lighthouse/internal/store/mongo"
	"lighthouse/internal/transport/postgres"
)

// Storage modes.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Audit modes.
const (
	AuditMongo  = "mongo"
	AuditMemory = "memory"
)

// StorageConfig selects the relational backend. Memory mode runs the whole
// pipeline in-process with the store's notifier standing in for the
// database triggers.
type StorageConfig struct {
	Mode string `yaml:"mode" env:"LIGHTHOUSE_STORAGE_MODE"`
}

// AuditConfig selects the audit trail backend.
type AuditConfig struct {
	Mode  string       `yaml:"mode" env:"LIGHTHOUSE_AUDIT_MODE"`
	Mongo mongo.Config `yaml:"mongo"`
}

// Config holds the application configuration.
type Config struct {
	Storage   StorageConfig    `yaml:"storage"`
	Audit     AuditConfig      `yaml:"audit"`
	Transport postgres.Config  `yaml:"transport"`
	Engine    engine.Config    `yaml:"engine"`
	Gateway   gateway.Config   `yaml:"gateway"`
	Auth      auth.Config      `yaml:"auth"`
	Bridge    bridge.Config    `yaml:"bridge"`
	Simulator simulator.Config `yaml:"simulator"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// Default returns the full default configuration.
func Default() *Config {
	return &Config{
		Storage:   StorageConfig{Mode: StoragePostgres},
		Audit:     AuditConfig{Mode: AuditMongo, Mongo: mongo.DefaultConfig()},
		Transport: postgres.DefaultConfig(),
		Engine:    engine.DefaultConfig(),
		Gateway:   gateway.DefaultConfig(),
		Auth:      auth.DefaultConfig(),
		Bridge:    bridge.DefaultConfig(),
		Simulator: simulator.DefaultConfig(),
		Logging:   DefaultLoggingConfig(),
	}
}

// Load builds the configuration.
// Order: defaults -> config/config.yml -> config/config.local.yml ->
// environment overrides -> ApplyDefaults -> Validate.
func Load() (*Config, error) {
	cfg := Default()

	loadFile("config/config.yml", cfg)
	loadFile("config/config.local.yml", cfg)

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills gaps in every section.
func (c *Config) ApplyDefaults() {
	if c.Storage.Mode == "" {
		c.Storage.Mode = StoragePostgres
	}
	if c.Audit.Mode == "" {
		c.Audit.Mode = AuditMongo
	}
	c.Audit.Mongo.ApplyDefaults()
	c.Transport.ApplyDefaults()
	c.Engine.ApplyDefaults()
	c.Gateway.ApplyDefaults()
	c.Auth.ApplyDefaults()
	c.Bridge.ApplyDefaults()
	c.Simulator.ApplyDefaults()
	c.Logging.ApplyDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	switch c.Storage.Mode {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("invalid storage mode: %q (must be %s or %s)",
			c.Storage.Mode, StoragePostgres, StorageMemory)
	}
	switch c.Audit.Mode {
	case AuditMongo, AuditMemory:
	default:
		return fmt.Errorf("invalid audit mode: %q (must be %s or %s)",
			c.Audit.Mode, AuditMongo, AuditMemory)
	}
	if c.Storage.Mode == StoragePostgres && c.Transport.DSN == "" {
		return fmt.Errorf("transport.dsn is required in postgres mode")
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

func loadFile(filename string, cfg *Config) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		log.Printf("Warning: error reading %s: %v", filename, err)
		return
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		log.Printf("Warning: error parsing %s: %v", filename, err)
	}
}
