// Package cache memoizes read results in Redis. A nil *Cache is valid and
// always computes.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Skufu/onehealth/internal/metrics"
)

type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	prefix  string
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string, ttl time.Duration, m *metrics.Metrics, logger *slog.Logger) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewWithClient(client, ttl, m, logger), nil
}

func NewWithClient(client *redis.Client, ttl time.Duration, m *metrics.Metrics, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, prefix: "onehealth:", metrics: m, logger: logger}
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

// Ping lets the cache take part in readiness checks.
func (c *Cache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Invalidate drops every cached entry, used after an import.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// Remember returns the cached value for key or stores the result of
// compute. Failed computations are never cached, so a degraded read is
// retried on the next call. Redis failures fall through to compute.
func Remember[T any](ctx context.Context, c *Cache, key string, compute func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return compute(ctx)
	}
	full := c.prefix + key

	raw, err := c.client.Get(ctx, full).Bytes()
	switch {
	case err == nil:
		var v T
		if uerr := json.Unmarshal(raw, &v); uerr == nil {
			c.metrics.Cache("hit")
			return v, nil
		}
		c.logger.Warn("dropping undecodable cache entry", "key", full)
	case errors.Is(err, redis.Nil):
		c.metrics.Cache("miss")
	default:
		c.metrics.Cache("error")
		c.logger.Warn("cache read failed", "key", full, "error", err)
		return compute(ctx)
	}

	v, err := compute(ctx)
	if err != nil {
		return v, err
	}
	payload, merr := json.Marshal(v)
	if merr != nil {
		return v, nil
	}
	if serr := c.client.Set(ctx, full, payload, c.ttl).Err(); serr != nil {
		c.logger.Warn("cache write failed", "key", full, "error", serr)
	}
	return v, nil
}
