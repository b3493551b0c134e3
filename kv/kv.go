package kv

import (
	"context"

	"github.com/pkg/errors"
	"github.com/pure-golang/orderbrowser/env"
	"github.com/pure-golang/orderbrowser/kv/memory"
	"github.com/pure-golang/orderbrowser/kv/redis"
)

// Provider определяет тип key-value хранилища
type Provider string

const (
	ProviderRedis  Provider = "redis"  // Redis хранилище
	ProviderMemory Provider = "memory" // хранилище в памяти процесса
)

// Config выбирает хранилище; поля Redis читаются из REDIS_*
type Config struct {
	Provider Provider `envconfig:"KV_PROVIDER" default:"redis"`
	redis.Config
}

// Store определяет интерфейс хранилища хешей
type Store interface {
	// HGetAll возвращает все поля хеша; для отсутствующего ключа пустую map
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// HReplace атомарно заменяет содержимое хеша
	HReplace(ctx context.Context, key string, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, keys ...string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*redis.Client)(nil)
	_ Store = (*memory.Store)(nil)
)

// NewDefault создаёт инстанс Store, читая конфигурацию из переменных окружения
func NewDefault(ctx context.Context) (Store, error) {
	var cfg Config
	if err := env.InitConfig(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to init config")
	}
	return New(ctx, cfg)
}

// New создаёт Store по конфигурации
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Provider {
	case ProviderRedis:
		return redis.Connect(ctx, cfg.Config.WithDefaults())
	case ProviderMemory:
		return memory.NewStore(), nil
	default:
		return nil, errors.Errorf("unknown kv provider: %s", cfg.Provider)
	}
}
