package tracing

import (
	"io"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Provider interface {
	trace.TracerProvider
	io.Closer
}

// ProviderBuilder wrap all realization details of constructor (ex. config struct)
type ProviderBuilder func() (Provider, error)

// Init installs the built provider globally. On a builder error the returned
// provider is a no-op so callers can always defer Close.
func Init(creator ProviderBuilder) (Provider, error) {
	provider, err := creator()
	if err != nil || provider == nil {
		return NoopProvider{TracerProvider: noop.NewTracerProvider()}, errors.Wrap(err, "failed to load tracing provider")
	}

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return provider, nil
}

type NoopProvider struct{ noop.TracerProvider }

func (NoopProvider) Close() error { return nil }
