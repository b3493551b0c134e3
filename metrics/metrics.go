package metrics

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	Host                  string `envconfig:"METRICS_HOST"`
	Port                  int    `envconfig:"METRICS_PORT" default:"9090"`
	HttpServerReadTimeout int    `envconfig:"METRICS_READ_TIMEOUT" default:"30"`
	Disabled              bool   `envconfig:"METRICS_DISABLED" default:"false"`
}

type Metrics struct {
	config   Config
	server   *http.Server
	listener net.Listener
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// InitDefault wires otel metrics to Prometheus and serves /metrics.
// A disabled config yields a closer that does nothing.
func InitDefault(config Config) (io.Closer, error) {
	if config.Disabled {
		return nopCloser{}, nil
	}

	provider := New(config)
	if err := provider.Start(); err != nil {
		return nil, errors.Wrap(err, "failed to start metrics server")
	}

	return provider, nil
}

func New(config Config) *Metrics {
	return &Metrics{
		config: config,
		server: NewHttpServer(config),
	}
}

func (s *Metrics) Start() error {
	if err := InitPrometheus(); err != nil {
		return errors.Wrap(err, "failed to init prometheus")
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.server.Addr)
	}
	s.listener = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Default().Warn("metrics server failed", "error", err.Error())
		}
	}()

	return nil
}

// Addr is the bound address, useful when Port is 0.
func (s *Metrics) Addr() string {
	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}

func (s *Metrics) Close() error {
	return errors.Wrap(s.server.Close(), "failed to close metrics")
}

func NewHttpServer(conf Config) *http.Server {
	r := http.NewServeMux()
	r.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		Handler:           r,
		ReadTimeout:       time.Duration(conf.HttpServerReadTimeout) * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
