package telemetry

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitLoggerWritesJSONToFile(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	dir := filepath.Join(t.TempDir(), "logs")
	logger, closeFn, err := InitLogger(dir, false)
	require.NoError(t, err)

	logger.Info("hello", "component", "test")
	logger.Debug("hidden")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(filepath.Join(dir, "retrievo.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"msg":"hello"`)
	require.Contains(t, string(data), `"component":"test"`)
	require.NotContains(t, string(data), "hidden")
}

func TestInitLoggerDebugLevel(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	dir := t.TempDir()
	logger, closeFn, err := InitLogger(dir, true)
	require.NoError(t, err)

	logger.Debug("visible")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(filepath.Join(dir, "retrievo.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), "visible")
}

func TestInitTelemetry(t *testing.T) {
	dir := t.TempDir()
	tracer, meter, cleanup, err := InitTelemetry(context.Background(), dir)
	require.NoError(t, err)
	require.NotNil(t, tracer)
	require.NotNil(t, meter)

	_, span := tracer.Start(context.Background(), "test-span")
	span.End()

	counter, err := meter.Int64Counter("test.counter")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	cleanup()

	data, err := os.ReadFile(filepath.Join(dir, "retrievo_traces.log"))
	require.NoError(t, err)
	require.Contains(t, string(data), "test-span")
}
