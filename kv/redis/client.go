// Package redis хранит хеши destinations в Redis.
package redis

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	rclient "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pure-golang/orderbrowser/logger"
)

var tracer = otel.Tracer("github.com/pure-golang/orderbrowser/kv/redis")

// ErrClientClosed возвращается после Close
var ErrClientClosed = errors.New("redis client is closed")

// Client оборачивает go-redis клиента операциями kv.Store
type Client struct {
	*rclient.Client
	cfg    Config
	logger *slog.Logger
}

// Connect создаёт клиента и проверяет соединение
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	c := New(ctx, cfg)
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	c.logger.Info("connected to redis", "addr", cfg.Addr, "db", cfg.DB)
	return c, nil
}

// New создаёт клиента без обращения к серверу
func New(ctx context.Context, cfg Config) *Client {
	return &Client{
		Client: rclient.NewClient(cfg.options()),
		cfg:    cfg,
		logger: logger.Component(ctx, "redis"),
	}
}

// run выполняет fn внутри span; на закрытом клиенте fn не вызывается
func (c *Client) run(ctx context.Context, op, key string, fn func(ctx context.Context, rdb *rclient.Client) error) error {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "redis"),
		attribute.String("db.operation", op),
		attribute.Int("db.redis.database_index", c.cfg.DB),
	}
	if key != "" {
		attrs = append(attrs, attribute.String("redis.key", key))
	}
	ctx, span := tracer.Start(ctx, "redis."+op, trace.WithAttributes(attrs...))
	defer span.End()

	err := ErrClientClosed
	if c.Client != nil {
		err = fn(ctx, c.Client)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// Close идемпотентен
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	if err := c.Client.Close(); err != nil && !errors.Is(err, rclient.ErrClosed) {
		return errors.Wrap(err, "failed to close redis connection")
	}
	c.Client = nil
	c.logger.Debug("redis connection closed")
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.run(ctx, "PING", "", func(ctx context.Context, rdb *rclient.Client) error {
		return errors.Wrap(rdb.Ping(ctx).Err(), "failed to ping redis")
	})
}

func (c *Client) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.run(ctx, "DEL", "", func(ctx context.Context, rdb *rclient.Client) error {
		return errors.Wrap(rdb.Del(ctx, keys...).Err(), "failed to delete keys")
	})
}

// Exists возвращает, сколько из keys существует
func (c *Client) Exists(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	var n int64
	err := c.run(ctx, "EXISTS", "", func(ctx context.Context, rdb *rclient.Client) (err error) {
		n, err = rdb.Exists(ctx, keys...).Result()
		return errors.Wrap(err, "failed to check keys existence")
	})
	return n, err
}

// HGetAll возвращает пустую map для отсутствующего ключа
func (c *Client) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	var fields map[string]string
	err := c.run(ctx, "HGETALL", key, func(ctx context.Context, rdb *rclient.Client) (err error) {
		fields, err = rdb.HGetAll(ctx, key).Result()
		return errors.Wrapf(err, "failed to read hash %q", key)
	})
	return fields, err
}

// HReplace удаляет хеш и записывает values в одной транзакции MULTI/EXEC
func (c *Client) HReplace(ctx context.Context, key string, values map[string]string) error {
	return c.run(ctx, "HREPLACE", key, func(ctx context.Context, rdb *rclient.Client) error {
		_, err := rdb.TxPipelined(ctx, func(pipe rclient.Pipeliner) error {
			pipe.Del(ctx, key)
			if len(values) == 0 {
				return nil
			}
			args := make([]any, 0, 2*len(values))
			for field, value := range values {
				args = append(args, field, value)
			}
			pipe.HSet(ctx, key, args...)
			return nil
		})
		return errors.Wrapf(err, "failed to replace hash %q", key)
	})
}
