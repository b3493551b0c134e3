package metrics

import (
	"sync"

	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

var (
	initOnce sync.Once
	initErr  error
)

// InitPrometheus implements opentelemetry interfaces and set global state.
// Only the first call does the work.
func InitPrometheus() error {
	initOnce.Do(func() {
		exporter, err := prometheus.New()
		if err != nil {
			initErr = errors.Wrap(err, "failed to create prometheus instance")
			return
		}
		otel.SetMeterProvider(metric.NewMeterProvider(metric.WithReader(exporter)))

		if err := runtime.Start(); err != nil {
			initErr = errors.Wrap(err, "failed to start runtime")
		}
	})
	return initErr
}
