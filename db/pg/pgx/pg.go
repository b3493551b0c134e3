package pgx

import (
	"context"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/multitracer"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/pkg/errors"
)

// DB extends pgxpool.Pool functionality
type DB struct {
	*pgxpool.Pool
}

type Options struct {
	Tracers []pgx.QueryTracer
}

// PoolConfig builds the pgxpool configuration without connecting.
func PoolConfig(cfg Config, options *Options) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL().String())
	if err != nil {
		return nil, errors.Wrap(err, "failed to pgxpool.ParseConfig")
	}

	if cfg.MaxOpenConns < 1 {
		cfg.MaxOpenConns = 1
	}
	poolCfg.MaxConns = cfg.MaxOpenConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifeTime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	if options != nil && len(options.Tracers) > 0 {
		poolCfg.ConnConfig.Tracer = multitracer.New(options.Tracers...)
	}

	return poolCfg, nil
}

// New opens the pool and pings the database.
func New(ctx context.Context, cfg Config, options *Options) (*DB, error) {
	poolCfg, err := PoolConfig(cfg, options)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to init database connections pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return &DB{Pool: pool}, nil
}

// NewDefault opens the pool with otel tracing and slog query logging.
func NewDefault(ctx context.Context, c Config) (*DB, error) {
	return New(ctx, c, &Options{
		Tracers: DefaultTracers(c),
	})
}

func DefaultTracers(c Config) []pgx.QueryTracer {
	return []pgx.QueryTracer{
		otelpgx.NewTracer(),
		&tracelog.TraceLog{
			Logger:   NewLogger(),
			LogLevel: traceLevel(c.TraceLogLevel),
		},
	}
}

func (db *DB) Close() error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	return nil
}
