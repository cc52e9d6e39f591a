package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/infrastructure/config"
	"github.com/shopsync/backend/internal/infrastructure/ratelimit"
)

// WindowStoreFactory creates rate window stores based on configuration
type WindowStoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	dial                  func(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error)
}

// WindowStoreFactoryOption is a functional option for configuring the factory
type WindowStoreFactoryOption func(*WindowStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) WindowStoreFactoryOption {
	return func(f *WindowStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory store when Redis is unavailable
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) WindowStoreFactoryOption {
	return func(f *WindowStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// withDialer replaces the Redis connector (tests)
func withDialer(dial func(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error)) WindowStoreFactoryOption {
	return func(f *WindowStoreFactory) {
		f.dial = dial
	}
}

// NewWindowStoreFactory creates a new factory
func NewWindowStoreFactory(cfg config.RedisConfig, opts ...WindowStoreFactoryOption) *WindowStoreFactory {
	f := &WindowStoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		dial:                  NewRedisClient,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// WindowStore is a rate window store plus the resources it holds
type WindowStore struct {
	ratelimit.WindowStore
	Backend string
	client  *redis.Client
}

// Close releases the Redis connection, if any
func (s *WindowStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Ping checks the Redis connection. The in-memory store is always healthy.
func (s *WindowStore) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

// CreateRedisStore creates a Redis-backed window store shared by every instance
func (f *WindowStoreFactory) CreateRedisStore(ctx context.Context) (*WindowStore, error) {
	client, err := f.dial(ctx, f.redisConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis window store: %w", err)
	}
	return &WindowStore{
		WindowStore: ratelimit.NewRedisStore(client),
		Backend:     config.RateLimitBackendRedis,
		client:      client,
	}, nil
}

// CreateInMemoryStore creates an in-memory window store
// WARNING: In-memory windows are not shared across process instances,
// so each instance admits up to the full platform ceiling
func (f *WindowStoreFactory) CreateInMemoryStore() *WindowStore {
	return &WindowStore{
		WindowStore: ratelimit.NewMemoryStore(),
		Backend:     config.RateLimitBackendMemory,
	}
}

// CreateStore creates the window store named by backend.
// For the redis backend it falls back to memory when Redis is unreachable
// and fallback is allowed.
func (f *WindowStoreFactory) CreateStore(ctx context.Context, backend string) (*WindowStore, error) {
	if backend != config.RateLimitBackendRedis {
		f.logger.Info("using in-memory rate window store")
		return f.CreateInMemoryStore(), nil
	}

	store, err := f.CreateRedisStore(ctx)
	if err == nil {
		f.logger.Info("using Redis rate window store", zap.String("addr", f.redisConfig.Addr()))
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for rate limiting but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory rate window store. "+
		"Platform ceilings are then enforced per instance.",
		zap.Error(err),
	)
	return f.CreateInMemoryStore(), nil
}
