// Package redis is the Redis-backed implementation of the storage contract,
// compatible with the key layout of existing FireNET databases.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/z060142/FireNET/internal/storage"
)

// Config holds Redis connection settings.
type Config struct {
	// URL is the Redis connection URL (e.g. redis://localhost:6379).
	URL string

	// Pool settings.
	PoolSize     int
	MinIdleConns int
}

// DefaultConfig returns sensible defaults for a local Redis instance.
func DefaultConfig() Config {
	return Config{
		URL:          "redis://localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// Storage is a Redis-backed implementation of the storage interface.
type Storage struct {
	client *redis.Client
}

var _ storage.Store = (*Storage)(nil)

// New connects to Redis using the provided config and verifies the
// connection before returning.
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{client: client}, nil
}

// NewWithClient creates a Storage with an existing client (for testing).
func NewWithClient(client *redis.Client) *Storage {
	return &Storage{client: client}
}

// Get returns the value under key, or storage.ErrNotFound.
func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", storage.ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Set writes value under key with no expiry; FireNET records live until
// explicitly overwritten.
func (s *Storage) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

// Close closes the Redis connection.
func (s *Storage) Close() error {
	return s.client.Close()
}
