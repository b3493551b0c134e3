package pgx

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/pure-golang/orderbrowser/logger"
)

// Logger пишет события tracelog в логгер из контекста, группа "postgres".
// Аргументы запросов не логируются: среди них бывают пароли
type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (l *Logger) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]interface{}) {
	attrs := make([]slog.Attr, 0, len(data))
	for k, v := range data {
		switch k {
		case "time":
			// duration в миллисекундах
			if d, ok := v.(time.Duration); ok {
				attrs = append(attrs, slog.Int64("duration_ms", d.Milliseconds()))
				continue
			}
		case "args":
			if args, ok := v.([]any); ok {
				attrs = append(attrs, slog.Int("args_count", len(args)))
			}
			continue
		}
		attrs = append(attrs, slog.Any(k, v))
	}

	logger.Component(ctx, "postgres").LogAttrs(ctx, slogLevel(level), msg, attrs...)
}

func slogLevel(level tracelog.LogLevel) slog.Level {
	switch level {
	case tracelog.LogLevelTrace:
		return slog.LevelDebug - 1
	case tracelog.LogLevelDebug:
		return slog.LevelDebug
	case tracelog.LogLevelInfo:
		return slog.LevelInfo
	case tracelog.LogLevelWarn:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// traceLevel parses POSTGRES_TRACE_LOG_LEVEL; unknown values turn query logging off.
func traceLevel(s string) tracelog.LogLevel {
	if level, err := tracelog.LogLevelFromString(s); err == nil {
		return level
	}
	return tracelog.LogLevelNone
}
