package logger

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/pure-golang/orderbrowser/logger/devslog"
	"github.com/pure-golang/orderbrowser/logger/noop"
	"github.com/pure-golang/orderbrowser/logger/stdjson"
	"go.opentelemetry.io/otel"
)

type Level string
type Provider string
type contextKeyT string

var contextKey = contextKeyT("github.com/pure-golang/orderbrowser/logger")

const (
	INFO  Level = "info"
	ERROR Level = "error"
	WARN  Level = "warn"
	DEBUG Level = "debug"

	ProviderDevSlog Provider = "dev"      // for dev
	ProviderStdJson Provider = "std_json" // for production
	ProviderNoop    Provider = "noop"     // for unit tests
)

type Config struct {
	Provider Provider `envconfig:"LOG_PROVIDER" default:"std_json"`
	Level    Level    `envconfig:"LOG_LEVEL" default:"info"`
	// Service is attached to every record as "service" when set.
	Service string `envconfig:"SERVICE_NAME" default:"orderbrowser"`
}

// NewDefault builds the logger selected by c.Provider.
func NewDefault(c Config) *slog.Logger {
	level := convertLevel(c.Level)

	var l *slog.Logger
	switch c.Provider {
	case ProviderDevSlog:
		l = devslog.NewDefault(level)
	case ProviderNoop:
		return noop.NewNoop()
	case ProviderStdJson:
		fallthrough
	default:
		l = stdjson.NewDefault(level)
	}

	if c.Service != "" {
		l = l.With(slog.String("service", c.Service))
	}
	return l
}

// InitDefault installs NewDefault(c) as the slog default and routes otel errors to it.
func InitDefault(c Config) {
	slog.SetDefault(NewDefault(c))
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		slog.Default().Error(err.Error())
	}))
}

// FromContext extracts logger from context if exists or returns default.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(contextKey).(*slog.Logger); ok && l != nil {
		return l
	}

	return slog.Default()
}

// NewContext packs logger into context.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey, l)
}

// Component returns the context logger grouped under name, e.g. "relay".
func Component(ctx context.Context, name string) *slog.Logger {
	return FromContext(ctx).WithGroup(name)
}

// WithErr returns the default logger with err attached.
func WithErr(err error) *slog.Logger {
	return appendErr(slog.Default(), err)
}

// FromContextWithErr returns the context logger with err attached.
func FromContextWithErr(ctx context.Context, err error) *slog.Logger {
	return appendErr(FromContext(ctx), err)
}

// FromContextWithErrIf is FromContextWithErr, or a discarding logger when err is nil.
func FromContextWithErrIf(ctx context.Context, err error) *slog.Logger {
	if err == nil {
		return noop.NewNoop()
	}

	return FromContextWithErr(ctx, err)
}

func appendErr(l *slog.Logger, err error) *slog.Logger {
	var stackTracer interface {
		StackTrace() errors.StackTrace
	}

	if errors.As(err, &stackTracer) {
		l = l.With("stack", stackTracer.StackTrace())
	}

	return l.With("error", err.Error())
}

// convertLevel accepts slog level names in any case, with offsets like "debug-4".
// Unknown names fall back to info.
func convertLevel(level Level) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
