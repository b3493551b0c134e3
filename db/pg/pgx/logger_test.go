package pgx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pure-golang/orderbrowser/logger"
)

func captureLogs(t *testing.T) (context.Context, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug - 1}))
	return logger.NewContext(context.Background(), l), &buf
}

func TestLogger_Log(t *testing.T) {
	ctx, buf := captureLogs(t)

	NewLogger().Log(ctx, tracelog.LogLevelInfo, "Query", map[string]interface{}{
		"sql":  "INSERT INTO destinations VALUES ($1, $2, $3, $4)",
		"args": []any{"MyMailService", "user", "secret", "{}"},
		"time": 1500 * time.Millisecond,
	})

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "INFO", record["level"])
	assert.Equal(t, "Query", record["msg"])

	group, ok := record["postgres"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1500), group["duration_ms"])
	assert.Equal(t, float64(4), group["args_count"])
	assert.NotContains(t, buf.String(), "secret")
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level tracelog.LogLevel
		want  slog.Level
	}{
		{tracelog.LogLevelTrace, slog.LevelDebug - 1},
		{tracelog.LogLevelDebug, slog.LevelDebug},
		{tracelog.LogLevelInfo, slog.LevelInfo},
		{tracelog.LogLevelWarn, slog.LevelWarn},
		{tracelog.LogLevelError, slog.LevelError},
		{tracelog.LogLevelNone, slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, slogLevel(tt.level))
		})
	}
}

func TestTraceLevel(t *testing.T) {
	assert.Equal(t, tracelog.LogLevelError, traceLevel("error"))
	assert.Equal(t, tracelog.LogLevelTrace, traceLevel("trace"))
	assert.Equal(t, tracelog.LogLevelNone, traceLevel("verbose"))
	assert.Equal(t, tracelog.LogLevelNone, traceLevel(""))
}
