package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lighthouse/internal/config"
)

func TestNewLogger_ConsoleOnly(t *testing.T) {
	cfg := config.DefaultLoggingConfig()
	cfg.ApplyDefaults()

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)
}

func TestNewLogger_FileOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := config.LoggingConfig{
		Level:   "info",
		Format:  "json",
		Dir:     dir,
		Console: config.OutputConfig{Enabled: false},
		File:    config.OutputConfig{Enabled: true},
	}
	cfg.ApplyDefaults()

	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	logger.Info("hello")
	logger.Error("boom")
	require.NoError(t, Shutdown())

	main, err := os.ReadFile(filepath.Join(dir, "lighthouse.log"))
	require.NoError(t, err)
	assert.Contains(t, string(main), `"msg":"hello"`)
	assert.Contains(t, string(main), `"msg":"boom"`)

	// Only warn and above reach the error file.
	errs, err := os.ReadFile(filepath.Join(dir, "errors.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(errs), `"msg":"hello"`)
	assert.Contains(t, string(errs), `"msg":"boom"`)
}

func TestNewLogger_AllDisabled(t *testing.T) {
	cfg := config.LoggingConfig{Level: "info", Format: "text"}
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	logger.Info("discarded")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestMultiHandler(t *testing.T) {
	var a, b bytes.Buffer
	ha := slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo})
	hb := slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError})
	mh := NewMultiHandler(ha, hb)

	ctx := context.Background()
	assert.True(t, mh.Enabled(ctx, slog.LevelInfo))
	assert.True(t, mh.Enabled(ctx, slog.LevelError))

	logger := slog.New(mh)
	logger.Info("routine")
	logger.Error("broken")

	assert.Contains(t, a.String(), "routine")
	assert.Contains(t, a.String(), "broken")
	assert.NotContains(t, b.String(), "routine")
	assert.Contains(t, b.String(), "broken")
}

func TestMultiHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	mh := NewMultiHandler(slog.NewTextHandler(&buf, nil))
	logger := slog.New(mh).With("component", "test")
	logger.Info("tagged")
	assert.Contains(t, buf.String(), "component=test")
}
