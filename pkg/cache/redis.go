package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisConfig struct {
	addr         string
	password     string
	db           int
	poolSize     int
	minIdleConns int
	prefix       string
	dialTimeout  time.Duration
}

type RedisOption func(*redisConfig)

func WithRedisAddr(host string, port int) RedisOption {
	return func(c *redisConfig) { c.addr = net.JoinHostPort(host, strconv.Itoa(port)) }
}

func WithRedisAuth(password string, db int) RedisOption {
	return func(c *redisConfig) { c.password, c.db = password, db }
}

func WithRedisPool(size, minIdle int) RedisOption {
	return func(c *redisConfig) {
		if size > 0 {
			c.poolSize = size
		}
		c.minIdleConns = minIdle
	}
}

// WithRedisPrefix namespaces every key, e.g. "plansentry:bars:XAUUSD".
func WithRedisPrefix(prefix string) RedisOption {
	return func(c *redisConfig) { c.prefix = prefix }
}

// RedisCache implements Store on a single Redis node.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects and pings before returning.
func NewRedisCache(ctx context.Context, opts ...RedisOption) (*RedisCache, error) {
	cfg := &redisConfig{
		addr:         "localhost:6379",
		poolSize:     10,
		minIdleConns: 2,
		prefix:       "plansentry",
		dialTimeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.addr,
		Password:     cfg.password,
		DB:           cfg.db,
		PoolSize:     cfg.poolSize,
		MinIdleConns: cfg.minIdleConns,
		DialTimeout:  cfg.dialTimeout,
	})

	pctx, cancel := context.WithTimeout(ctx, cfg.dialTimeout)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.addr, err)
	}
	return &RedisCache{client: client, prefix: cfg.prefix}, nil
}

func (c *RedisCache) Close() error { return c.client.Close() }

func (c *RedisCache) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

func (c *RedisCache) SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, Key(c.prefix, key), value, ttl).Err()
}

func (c *RedisCache) GetBytes(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, Key(c.prefix, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	return data, err
}

// Delete uses UNLINK so large snapshot values are reclaimed off the main thread.
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = Key(c.prefix, k)
	}
	return c.client.Unlink(ctx, full...).Err()
}
