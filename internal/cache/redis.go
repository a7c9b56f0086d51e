// Package cache holds short-lived keyed state: one-time verification and
// reset tokens, and fixed-window rate-limit counters.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is implemented by RedisCache and MemoryStore.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// GetDel reads and removes a key in one step, so a token is spent once.
	GetDel(ctx context.Context, key string) ([]byte, error)
	// Incr bumps a counter and (re)arms its window.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}

type RedisCache struct {
	client *redis.Client
}

var _ Store = (*RedisCache)(nil)

func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Connected to Redis at %s", opts.Addr)
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return val, err
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCache) GetDel(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.GetDel(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return val, err
}

func (c *RedisCache) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (c *RedisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.client.TTL(ctx, key).Result()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// VerificationKey and ResetKey namespace one-time tokens by purpose.
func VerificationKey(token string) string { return "verify:" + token }

func ResetKey(token string) string { return "reset:" + token }

// RateKey names a rate-limit counter: "rate:<client>:<action>".
func RateKey(clientID, action string) string {
	return "rate:" + clientID + ":" + action
}
