package std

import (
	"context"
	stdErr "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/pure-golang/orderbrowser/httpserver"
)

const DefaultShutdownTimeout = 15 * time.Second

var _ httpserver.RunableProvider = (*Server)(nil)

type Config struct {
	Host            string        `envconfig:"WEBSERVER_HOST"`
	Port            int           `envconfig:"WEBSERVER_PORT" default:"4004"`
	TLSCertPath     string        `envconfig:"WEBSERVER_TLS_CERT_PATH"`
	TLSKeyPath      string        `envconfig:"WEBSERVER_TLS_KEY_PATH"`
	ReadTimeout     time.Duration `envconfig:"WEBSERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"WEBSERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"WEBSERVER_SHUTDOWN_TIMEOUT" default:"15s"`
}

type Server struct {
	logger *slog.Logger
	server *http.Server
	config Config

	mx       sync.Mutex
	listener net.Listener
}

func NewDefault(c Config, h http.Handler) *Server {
	s := New(c, h)

	s.server.ErrorLog = slog.NewLogLogger(s.logger.Handler(), slog.LevelError)

	return s
}

func New(c Config, h http.Handler) *Server {
	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", c.Host, c.Port),
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second, // Prevent Slowloris attacks
			ReadTimeout:       c.ReadTimeout,
			WriteTimeout:      c.WriteTimeout,
		},
		logger: slog.Default().WithGroup("webserver"),
		config: c,
	}
}

func (s *Server) listen() (net.Listener, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.listener != nil {
		return s.listener, nil
	}
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", s.server.Addr)
	}
	s.listener = ln
	return ln, nil
}

// Addr returns the bound address once the server listens, the configured one otherwise.
func (s *Server) Addr() string {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}

// Start listens and serves until Close.
func (s *Server) Start() error {
	ln, err := s.listen()
	if err != nil {
		return err
	}
	return s.serve(ln)
}

func (s *Server) serve(ln net.Listener) error {
	s.logger.Info("server starting", slog.String("addr", ln.Addr().String()))

	var err error
	if s.config.TLSCertPath == "" {
		err = s.server.Serve(ln)
	} else {
		err = s.server.ServeTLS(ln, s.config.TLSCertPath, s.config.TLSKeyPath)
	}

	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return errors.Wrapf(err, "serve failed")
}

func (s *Server) Close() error {
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := s.server.Shutdown(ctx)
	if err != nil {
		err = stdErr.Join(err, errors.Wrapf(s.server.Close(), "failed to close server"))
	}

	s.logger.Info("server closed")
	return errors.Wrapf(err, "server shutdown failed")
}

// Run binds the listener so address errors surface to the caller, then serves in background.
func (s *Server) Run() error {
	ln, err := s.listen()
	if err != nil {
		return err
	}

	go func() {
		if err := s.serve(ln); err != nil {
			s.logger.With("error", err).Error("webserver crashed")
		}
	}()
	return nil
}
