package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.WithDefaults()

	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 10, cfg.PoolSize)

	cfg = Config{Addr: "redis:6380", PoolSize: 2}.WithDefaults()
	assert.Equal(t, "redis:6380", cfg.Addr)
	assert.Equal(t, 2, cfg.PoolSize)
}

func TestClient_Close(t *testing.T) {
	client := New(context.Background(), Config{Addr: "localhost:6379"})

	require.NoError(t, client.Close())
	assert.Nil(t, client.Client)
	// Повторное закрытие не возвращает ошибку
	require.NoError(t, client.Close())
}

func TestClient_Closed(t *testing.T) {
	ctx := context.Background()
	client := New(ctx, Config{Addr: "localhost:6379"})
	require.NoError(t, client.Close())

	assert.ErrorIs(t, client.Ping(ctx), ErrClientClosed)

	_, err := client.HGetAll(ctx, "k")
	assert.ErrorIs(t, err, ErrClientClosed)

	assert.ErrorIs(t, client.HReplace(ctx, "k", map[string]string{"a": "b"}), ErrClientClosed)
	assert.ErrorIs(t, client.Delete(ctx, "k"), ErrClientClosed)

	_, err = client.Exists(ctx, "k")
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestClient_EmptyKeys(t *testing.T) {
	ctx := context.Background()
	client := New(ctx, Config{Addr: "localhost:6379"})
	defer client.Close()

	assert.NoError(t, client.Delete(ctx))

	n, err := client.Exists(ctx)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Connect(ctx, Config{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping redis")
}
