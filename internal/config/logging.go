package config

import (
	"fmt"
)

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level    string         `yaml:"level" env:"LIGHTHOUSE_LOG_LEVEL"`   // debug, info, warn, error
	Format   string         `yaml:"format" env:"LIGHTHOUSE_LOG_FORMAT"` // text, json
	Dir      string         `yaml:"dir" env:"LIGHTHOUSE_LOG_DIR"`
	Rotation RotationConfig `yaml:"rotation"`
	Console  OutputConfig   `yaml:"console"`
	File     OutputConfig   `yaml:"file"`
}

// RotationConfig holds log rotation settings.
type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`    // MB
	MaxBackups int  `yaml:"max_backups"` // number of files
	MaxAge     int  `yaml:"max_age"`     // days
	Compress   bool `yaml:"compress"`
}

// OutputConfig holds one output destination's settings. An empty Level
// inherits the top-level one.
type OutputConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
}

// DefaultLoggingConfig returns the logging defaults: console only, text.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  "info",
		Format: "text",
		Dir:    "logs",
		Rotation: RotationConfig{
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     30,
		},
		Console: OutputConfig{Enabled: true},
	}
}

// ApplyDefaults fills in missing values.
func (c *LoggingConfig) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if c.Dir == "" {
		c.Dir = "logs"
	}
	if c.Rotation.MaxSize == 0 {
		c.Rotation.MaxSize = 100
	}
	if c.Rotation.MaxBackups == 0 {
		c.Rotation.MaxBackups = 10
	}
	if c.Rotation.MaxAge == 0 {
		c.Rotation.MaxAge = 30
	}
	if c.Console.Level == "" {
		c.Console.Level = c.Level
	}
	if c.File.Level == "" {
		c.File.Level = c.Level
	}
}

var validLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration.
func (c *LoggingConfig) Validate() error {
	if !validLevels[c.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Level)
	}
	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Format)
	}
	if c.Console.Level != "" && !validLevels[c.Console.Level] {
		return fmt.Errorf("invalid console log level: %s", c.Console.Level)
	}
	if c.File.Level != "" && !validLevels[c.File.Level] {
		return fmt.Errorf("invalid file log level: %s", c.File.Level)
	}
	if c.File.Enabled && c.Dir == "" {
		return fmt.Errorf("log directory cannot be empty when file output is enabled")
	}
	return nil
}
