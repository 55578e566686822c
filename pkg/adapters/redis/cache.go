package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/reactor/pkg/ports"
)

const defaultPrefix = "reactor:trial:"

var _ ports.TrialCache = (*Cache)(nil)

// Cache implements ports.TrialCache using Redis, so optimizer trials are shared
// between processes.
type Cache struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Cache)

// WithTTL sets the expiration of cached trials.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

// WithPrefix sets the key prefix of cached trials.
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// New creates a new Redis trial cache with options.
func New(address, password string, db int, opts ...Option) *Cache {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis trial cache from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Cache {
	c := &Cache{
		client: client,
		prefix: defaultPrefix,
		ttl:    0, // No expiration by default
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Cache) key(k string) string {
	return c.prefix + k
}

// Ping checks the connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns the cached objective value for key.
func (c *Cache) Get(ctx context.Context, key string) (float64, bool, error) {
	v, err := c.client.Get(ctx, c.key(key)).Float64()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get trial from redis: %w", err)
	}
	return v, true, nil
}

// Put stores an objective value. Values keep full float64 precision.
func (c *Cache) Put(ctx context.Context, key string, value float64) error {
	s := strconv.FormatFloat(value, 'g', -1, 64)
	if err := c.client.Set(ctx, c.key(key), s, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save trial to redis: %w", err)
	}
	return nil
}

// Purge deletes every trial under the cache prefix and reports how many
// were removed.
func (c *Cache) Purge(ctx context.Context) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefix+"*", 256).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to scan trials: %w", err)
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("failed to delete trials: %w", err)
			}
			removed += int(n)
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

// Close closes the redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
