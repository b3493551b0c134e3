package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/pure-golang/orderbrowser/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/pure-golang/orderbrowser/httpserver/middleware"

var (
	meter = otel.GetMeterProvider().Meter(instrumentationName)
	// nolint:errcheck // Sync OpenTelemetry instruments never return errors
	requestsCount, _      = meter.Int64Counter("http.server.request_count")
	requestTimeHist, _    = meter.Int64Histogram("http.server.request_time", metric.WithUnit("ms"))
	requestBodyLenHist, _ = meter.Int64Histogram("http.server.request_body_len", metric.WithUnit("By"))
	tracer                = otel.Tracer(instrumentationName)
)

// Monitoring traces incoming http requests using open telemetry tracer + attaches logger to request context.
// Bodies and credential headers are never recorded: relay requests carry mail content.
func Monitoring(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqTime := time.Now()

		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		path := r.URL.Path
		ctx, span := tracer.Start(ctx, r.Method+" "+path, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		metricLabels := []attribute.KeyValue{
			attribute.String("http.method", r.Method),
			attribute.String("http.route", path),
		}

		log := slog.Default().With("method", r.Method, "path", path)
		if sc := span.SpanContext(); sc.HasTraceID() {
			traceID := sc.TraceID().String()
			log = log.With("trace_id", traceID)
			w.Header().Set("X-Trace-Id", traceID)
		}
		ctx = logger.NewContext(ctx, log)

		srw := newStatefulRespWriter(w)
		next.ServeHTTP(srw, r.WithContext(ctx))

		span.SetAttributes(append(metricLabels,
			attribute.String("http.user_agent", r.UserAgent()),
			attribute.String("net.peer.addr", r.RemoteAddr),
			attribute.Int64("http.request_content_length", r.ContentLength),
			attribute.Int("http.status_code", srw.status),
			attribute.Int("http.response_content_length", srw.written),
		)...)

		requestsCount.Add(ctx, 1, metric.WithAttributes(append(metricLabels,
			attribute.Int("http.status_code", srw.status))...))
		requestTimeHist.Record(ctx, time.Since(reqTime).Milliseconds(), metric.WithAttributes(metricLabels...))
		if r.ContentLength > 0 {
			requestBodyLenHist.Record(ctx, r.ContentLength, metric.WithAttributes(metricLabels...))
		}

		if srw.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(srw.status))
			return
		}
		span.SetStatus(codes.Ok, "")
	})
}

// statefulRespWriter keeps sent status and body size after WriteHeader/Write calls
type statefulRespWriter struct {
	http.ResponseWriter
	status  int
	written int
}

func newStatefulRespWriter(w http.ResponseWriter) *statefulRespWriter {
	return &statefulRespWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *statefulRespWriter) WriteHeader(status int) {
	w.ResponseWriter.WriteHeader(status)
	w.status = status
}

func (w *statefulRespWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

func (w *statefulRespWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
