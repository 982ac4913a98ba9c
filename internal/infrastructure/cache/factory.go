package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/erp/invoicesync/internal/domain/shared"
	"github.com/erp/invoicesync/internal/infrastructure/config"
)

// Backends are the coordination stores used by the sync service
type Backends struct {
	Locker      shared.KeyedLocker
	Idempotency shared.IdempotencyStore
	// Distributed is false when the stores only cover this process
	Distributed bool

	client redis.UniversalClient
}

// Close releases the stores and the Redis client
func (b *Backends) Close() error {
	_ = b.Locker.Close()
	_ = b.Idempotency.Close()
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}

// Ping checks the Redis connection. In-memory backends are always reachable.
func (b *Backends) Ping(ctx context.Context) error {
	if b.client == nil {
		return nil
	}
	return b.client.Ping(ctx).Err()
}

// Factory builds the lock and idempotency stores from configuration
type Factory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	pingTimeout           time.Duration
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory stores
// when Redis is configured but unreachable. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFactory creates a new factory
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: !cfg.Required,
		pingTimeout:           5 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Build returns Redis-backed stores when Redis answers, in-memory stores
// otherwise (unless fallback is disabled).
func (f *Factory) Build(ctx context.Context) (*Backends, error) {
	if !f.redisConfig.Enabled() {
		f.logger.Info("Redis not configured, using in-memory lock and webhook dedup")
		return f.inMemory(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, f.pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("redis required for order locks but unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory lock and webhook dedup. "+
			"Concurrent instances may sync the same order twice.",
			zap.String("addr", f.redisConfig.Addr()),
			zap.Error(err))
		return f.inMemory(), nil
	}

	f.logger.Info("Using Redis for order locks and webhook dedup", zap.String("addr", f.redisConfig.Addr()))
	return NewRedisBackends(client), nil
}

// NewRedisBackends builds Redis stores on an existing client
func NewRedisBackends(client redis.UniversalClient) *Backends {
	return &Backends{
		Locker:      NewRedisLocker(client, DefaultLockPrefix),
		Idempotency: NewRedisIdempotencyStore(client, DefaultWebhookPrefix),
		Distributed: true,
		client:      client,
	}
}

func (f *Factory) inMemory() *Backends {
	return &Backends{
		Locker:      NewInMemoryLocker(),
		Idempotency: NewInMemoryIdempotencyStore(),
	}
}
