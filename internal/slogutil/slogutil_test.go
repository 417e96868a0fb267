package slogutil

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javi11/altview/internal/config"
)

func TestSetup_LevelChangesAtRuntime(t *testing.T) {
	var buf bytes.Buffer
	logging := Setup(config.LogConfig{Level: "info"}, &buf)
	defer logging.Close()

	logging.Logger.Debug("hidden")
	assert.NotContains(t, buf.String(), "hidden")

	updater := config.NewLoggingUpdater(logging.Leveler, "info")
	require.NoError(t, updater.UpdateLevel("debug"))

	logging.Logger.Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetup_WritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "altview.log")

	var buf bytes.Buffer
	logging := Setup(config.LogConfig{File: path, Level: "warn", MaxSize: 1}, &buf)

	logging.Logger.Warn("cache trimmed")
	logging.Logger.Info("ignored")
	require.NoError(t, logging.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cache trimmed")
	assert.NotContains(t, string(data), "ignored")
	assert.Contains(t, buf.String(), "cache trimmed")
}

func TestSetup_EnvLevelFallback(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")

	logging := Setup(config.LogConfig{}, &bytes.Buffer{})
	assert.Equal(t, slog.LevelError, logging.Leveler.Level())
}

func TestWith_AppendsContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(WrapHandler(slog.NewTextHandler(&buf, nil)))

	ctx := With(context.Background(), "run_id", "r1", "key", "a")
	ctx = With(ctx, "key", "b")

	logger.InfoContext(ctx, "loaded")
	out := buf.String()
	assert.Contains(t, out, "run_id=r1")
	assert.Contains(t, out, "key=b")
	assert.NotContains(t, out, "key=a")

	assert.Len(t, Attrs(ctx), 2)
	assert.Empty(t, Attrs(context.Background()))
}

func TestHandler_WithHooks(t *testing.T) {
	var buf bytes.Buffer
	h := WrapHandler(slog.NewTextHandler(&buf, nil)).WithHooks(HookFunc(func(ctx context.Context, r *slog.Record) {
		r.AddAttrs(slog.String("host", "test"))
	}))

	slog.New(h).With("component", "cache").Info("hello")
	assert.Contains(t, buf.String(), "host=test")
	assert.Contains(t, buf.String(), "component=cache")
}

func TestDynamicLeveler_ZeroValue(t *testing.T) {
	var dl DynamicLeveler
	assert.Equal(t, slog.LevelInfo, dl.Level())
}
