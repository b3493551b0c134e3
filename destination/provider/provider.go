// Package provider builds the destination Finder selected by configuration.
package provider

import (
	"context"

	"github.com/pkg/errors"

	pg "github.com/pure-golang/orderbrowser/db/pg/pgx"
	"github.com/pure-golang/orderbrowser/destination"
	"github.com/pure-golang/orderbrowser/destination/btp"
	"github.com/pure-golang/orderbrowser/destination/kvstore"
	"github.com/pure-golang/orderbrowser/destination/pgstore"
	"github.com/pure-golang/orderbrowser/destination/static"
	"github.com/pure-golang/orderbrowser/env"
	"github.com/pure-golang/orderbrowser/kv"
)

// Kind names a destination source.
type Kind string

const (
	KindStatic   Kind = "static"
	KindRedis    Kind = "redis"
	KindPostgres Kind = "postgres"
	KindBTP      Kind = "btp"
)

type Config struct {
	Kind Kind `envconfig:"DESTINATION_PROVIDER" default:"static"`
	// Migrate creates the destinations table on start (postgres only).
	Migrate bool `envconfig:"DESTINATION_MIGRATE" default:"true"`
}

// NewDefault reads Config and the selected provider's settings from the environment.
func NewDefault(ctx context.Context) (destination.Finder, error) {
	var cfg Config
	if err := env.InitConfig(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to init config")
	}
	return New(ctx, cfg)
}

// New builds the Finder for cfg.Kind. Provider settings come from the environment.
func New(ctx context.Context, cfg Config) (destination.Finder, error) {
	switch cfg.Kind {
	case KindStatic:
		var c static.Config
		if err := env.InitConfig(&c); err != nil {
			return nil, errors.Wrap(err, "failed to init static destinations config")
		}
		return static.New(c)
	case KindRedis:
		store, err := kv.NewDefault(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect key-value store")
		}
		return kvstore.New(store), nil
	case KindPostgres:
		var c pg.Config
		if err := env.InitConfig(&c); err != nil {
			return nil, errors.Wrap(err, "failed to init postgres config")
		}
		db, err := pg.NewDefault(ctx, c)
		if err != nil {
			return nil, err
		}
		store := pgstore.New(db)
		if cfg.Migrate {
			if err := store.Migrate(ctx); err != nil {
				_ = store.Close()
				return nil, err
			}
		}
		return store, nil
	case KindBTP:
		var c btp.Config
		if err := env.InitConfig(&c); err != nil {
			return nil, errors.Wrap(err, "failed to init destination service config")
		}
		return btp.New(c), nil
	default:
		return nil, errors.Errorf("unknown destination provider: %s", cfg.Kind)
	}
}

// NewStore is New restricted to providers that can save destinations.
func NewStore(ctx context.Context, cfg Config) (destination.Store, error) {
	finder, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, ok := finder.(destination.Store)
	if !ok || cfg.Kind == KindStatic {
		_ = finder.Close()
		return nil, errors.Errorf("destination provider %s is read-only", cfg.Kind)
	}
	return store, nil
}
