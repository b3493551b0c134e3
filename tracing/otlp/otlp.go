package otlp

import (
	"context"

	"github.com/pkg/errors"
	"github.com/pure-golang/orderbrowser/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.opentelemetry.io/otel/trace/noop"
)

var _ tracing.Provider = (*Provider)(nil)

type Config struct {
	// EndPoint is optional: without it spans are dropped.
	EndPoint    string  `envconfig:"TRACING_ENDPOINT"`
	ServiceName string  `envconfig:"SERVICE_NAME" default:"orderbrowser"`
	AppVersion  string  `envconfig:"APP_VERSION" default:"dev"`
	SampleRatio float64 `envconfig:"TRACING_SAMPLE_RATIO" default:"1"`
}

// Provider extends tracesdk.TracerProvider exporting over OTLP/HTTP.
type Provider struct {
	*tracesdk.TracerProvider
}

func (p *Provider) Close() error {
	ctx := context.Background()
	if err := p.ForceFlush(ctx); err != nil {
		// Ensure shutdown is called even if ForceFlush fails
		if shutdownErr := p.TracerProvider.Shutdown(ctx); shutdownErr != nil {
			return errors.Wrap(err, "otlp force flush failed (also shutdown failed)")
		}
		return errors.Wrap(err, "otlp force flush failed")
	}
	return errors.Wrap(p.TracerProvider.Shutdown(ctx), "shutdown otlp")
}

func NewProviderBuilder(conf Config) tracing.ProviderBuilder {
	return func() (tracing.Provider, error) {
		if conf.EndPoint == "" {
			return tracing.NoopProvider{TracerProvider: noop.NewTracerProvider()}, nil
		}
		if conf.ServiceName == "" {
			return nil, errors.New("service name is empty")
		}

		exp, err := otlptrace.New(
			context.Background(),
			otlptracehttp.NewClient(
				otlptracehttp.WithEndpointURL(conf.EndPoint),
			),
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create otlp exporter")
		}

		tp := tracesdk.NewTracerProvider(
			tracesdk.WithBatcher(exp),
			tracesdk.WithResource(resource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceNameKey.String(conf.ServiceName),
				semconv.ServiceVersionKey.String(conf.AppVersion),
			)),
			tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(conf.SampleRatio))),
		)
		return &Provider{TracerProvider: tp}, nil
	}
}
