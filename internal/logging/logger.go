// Package logging builds the process-wide slog logger from configuration:
// console output, rotated log files, or both.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"lighthouse/internal/config"
)

var (
	logFiles   []*lumberjack.Logger
	logFilesMu sync.Mutex
)

// Initialize sets up the global logger based on configuration.
func Initialize(cfg config.LoggingConfig) error {
	logger, err := NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(logger)

	slog.Info("logging initialized",
		"level", cfg.Level,
		"format", cfg.Format,
		"console", cfg.Console.Enabled,
		"file", cfg.File.Enabled,
	)
	return nil
}

// NewLogger creates a logger instance with the given configuration.
func NewLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	var handlers []slog.Handler

	if cfg.Console.Enabled {
		handlers = append(handlers, newHandler(os.Stdout, cfg.Format, parseLevel(cfg.Console.Level)))
	}

	if cfg.File.Enabled {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		mainFile := rotatedFile(filepath.Join(cfg.Dir, "lighthouse.log"), cfg.Rotation)
		handlers = append(handlers, newHandler(mainFile, cfg.Format, parseLevel(cfg.File.Level)))

		// Warnings and errors also go to a dedicated file.
		errorFile := rotatedFile(filepath.Join(cfg.Dir, "errors.log"), cfg.Rotation)
		handlers = append(handlers, newHandler(errorFile, cfg.Format, slog.LevelWarn))
	}

	if len(handlers) == 0 {
		// Everything disabled; discard rather than surprise callers with nil.
		return slog.New(slog.NewTextHandler(io.Discard, nil)), nil
	}
	if len(handlers) == 1 {
		return slog.New(handlers[0]), nil
	}
	return slog.New(NewMultiHandler(handlers...)), nil
}

// Shutdown closes all rotated log files.
func Shutdown() error {
	logFilesMu.Lock()
	defer logFilesMu.Unlock()
	for _, f := range logFiles {
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
	}
	logFiles = nil
	return nil
}

func rotatedFile(path string, rot config.RotationConfig) *lumberjack.Logger {
	f := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rot.MaxSize,
		MaxBackups: rot.MaxBackups,
		MaxAge:     rot.MaxAge,
		Compress:   rot.Compress,
	}
	logFilesMu.Lock()
	logFiles = append(logFiles, f)
	logFilesMu.Unlock()
	return f
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
