// Package redis carries the fallback change feed over Redis Pub/Sub. A
// backend that mirrors challenge row changes publishes on one channel per
// stream; the session manager only cares that something arrived.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// Subscriptions hold a connection open indefinitely, so reads never time out.
const dialTimeout = 5 * time.Second

func options(cfg ClientConfig) *redis.Options {
	opts := &redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: dialTimeout,
		ReadTimeout: -1,
		ClientName:  "predictlive",
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// Client owns the connection pool the feed subscribes through.
type Client struct {
	rdb *redis.Client
}

// New connects and pings the server so a bad address fails at startup
// instead of on the first stream.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	rdb := redis.NewClient(options(cfg))
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// Close releases the pool and ends any open subscriptions.
func (c *Client) Close() error {
	return c.rdb.Close()
}
