package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/onehealth/internal/metrics"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRememberNilCache(t *testing.T) {
	calls := 0
	compute := func(context.Context) (int, error) {
		calls++
		return 42, nil
	}

	for i := 0; i < 2; i++ {
		v, err := Remember(context.Background(), nil, "k", compute)
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, 2, calls)
	assert.NoError(t, (*Cache)(nil).Invalidate(context.Background()))
}

func TestRememberRedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	m := metrics.New()
	c := NewWithClient(client, time.Minute, m, quiet())
	defer c.Close()

	v, err := Remember(context.Background(), c, "k", func(context.Context) (string, error) { return "fresh", nil })

	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheResults.WithLabelValues("error")))
}

func TestRememberPropagatesComputeError(t *testing.T) {
	boom := errors.New("store down")

	_, err := Remember(context.Background(), nil, "k", func(context.Context) ([]int, error) { return []int{}, boom })
	assert.ErrorIs(t, err, boom)
}

// TestRememberRedis runs against a real server when REDIS_URL is set.
func TestRememberRedis(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	m := metrics.New()
	c, err := Connect(context.Background(), url, time.Minute, m, quiet())
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()
	require.NoError(t, c.Invalidate(ctx))

	calls := 0
	compute := func(context.Context) (map[string]int64, error) {
		calls++
		return map[string]int64{"Matam": 12}, nil
	}
	for i := 0; i < 3; i++ {
		v, err := Remember(ctx, c, "test:by-region", compute)
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"Matam": 12}, v)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.CacheResults.WithLabelValues("hit")))

	failing := func(context.Context) (int, error) { return 0, errors.New("degraded") }
	_, err = Remember(ctx, c, "test:failing", failing)
	require.Error(t, err)
	exists, err := c.client.Exists(ctx, "onehealth:test:failing").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
}
