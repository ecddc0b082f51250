// Package cache provides the TTL key/value stores that sit in front of
// expensive lookups such as embedding generation.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pitabwire/util"
	"github.com/redis/go-redis/v9"
)

// BackendType selects a store implementation.
type BackendType string

// Backend type constants.
const (
	BackendNone   BackendType = "none"
	BackendMemory BackendType = "memory"
	BackendRedis  BackendType = "redis"
)

const defaultTTL = 24 * time.Hour

// ErrUnknownBackend is returned for an unsupported backend type.
var ErrUnknownBackend = errors.New("unknown cache backend")

// Store is a byte-valued cache with per-entry expiry.
type Store interface {
	// Get returns the value for key. found is false for missing or expired entries.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores value under key for ttl. A ttl of zero uses the store default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Close releases the store's resources.
	Close() error
}

// Config configures NewStore.
type Config struct {
	Backend BackendType

	// RedisURL is required for the redis backend.
	RedisURL string

	// KeyPrefix namespaces redis keys.
	KeyPrefix string

	// TTL is the default entry lifetime.
	TTL time.Duration
}

// NewStore builds the configured store. BackendNone returns a nil Store.
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	log := util.Log(ctx)

	switch cfg.Backend {
	case BackendNone, "":
		log.Info("cache disabled")
		return nil, nil //nolint:nilnil // a nil store means caching is off

	case BackendMemory:
		log.Info("using in-memory cache", "ttl", cfg.TTL.String())
		return NewMemoryStore(cfg.TTL), nil

	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("redis URL required when using redis cache backend")
		}

		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis URL: %w", err)
		}

		client := redis.NewClient(opts)
		if pingErr := client.Ping(ctx).Err(); pingErr != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", pingErr)
		}

		log.Info("using redis cache", "url", sanitizeRedisURL(cfg.RedisURL), "ttl", cfg.TTL.String())
		return NewRedisStore(client, cfg.KeyPrefix, cfg.TTL), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}

// NewStoreWithFallback builds the configured store and falls back to memory
// when redis cannot be reached.
func NewStoreWithFallback(ctx context.Context, cfg Config) (Store, error) {
	store, err := NewStore(ctx, cfg)
	if err != nil && cfg.Backend == BackendRedis {
		util.Log(ctx).Warn("falling back to in-memory cache", "error", err.Error())
		cfg.Backend = BackendMemory
		return NewStore(ctx, cfg)
	}
	return store, err
}

// sanitizeRedisURL removes the password from a redis URL for logging.
func sanitizeRedisURL(url string) string {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return "[invalid]"
	}

	if opts.Username != "" {
		return fmt.Sprintf("redis://%s@%s/%d", opts.Username, opts.Addr, opts.DB)
	}
	return fmt.Sprintf("redis://%s/%d", opts.Addr, opts.DB)
}
