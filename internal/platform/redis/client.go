// Package redis holds the registry's optional Redis connection. Redis carries
// only operational side-channel state (the emergency-mode flag); the in-process
// aggregate stays authoritative, so a missing or unhealthy Redis never blocks
// an operation.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"certo/internal/platform/config"
)

// emergencyModeKey is where the issuance-freeze flag is mirrored for sibling
// processes and dashboards.
const emergencyModeKey = "certo:emergency_mode"

// Client wraps the go-redis client with the registry's flag helpers.
type Client struct {
	*redis.Client
}

// New dials Redis from the provided configuration. Returns nil when the URL
// is empty, meaning Redis is not configured.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client}, nil
}

// SetEmergencyFlag mirrors the issuance-freeze flag.
func (c *Client) SetEmergencyFlag(ctx context.Context, active bool) error {
	value := "0"
	if active {
		value = "1"
	}
	if err := c.Set(ctx, emergencyModeKey, value, 0).Err(); err != nil {
		return fmt.Errorf("mirror emergency flag: %w", err)
	}
	return nil
}

// Health reports whether the connection still answers.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *Client) Close() error {
	return c.Client.Close()
}
