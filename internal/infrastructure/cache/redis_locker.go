package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/erp/invoicesync/internal/domain/shared"
)

// DefaultLockPrefix namespaces per-order lock keys in Redis
const DefaultLockPrefix = "invoicesync:lock:"

// releaseScript deletes the key only when it still holds the caller's token,
// so a holder whose TTL expired cannot release a lock taken over by another.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements KeyedLocker with SET NX PX and a random token.
// It is shared by every instance pointing at the same Redis.
type RedisLocker struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisLocker creates a locker on an existing client. The client is not
// closed by Close.
func NewRedisLocker(client redis.UniversalClient, keyPrefix string) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = DefaultLockPrefix
	}
	return &RedisLocker{client: client, keyPrefix: keyPrefix}
}

// Acquire takes the lock or returns shared.ErrLockHeld without waiting
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (shared.Unlocker, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive, got %s", ttl)
	}
	fullKey := l.keyPrefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", fullKey, err)
	}
	if !ok {
		return nil, shared.ErrLockHeld
	}

	return func(ctx context.Context) error {
		err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to release lock %s: %w", fullKey, err)
		}
		return nil
	}, nil
}

// Close is a no-op; the client belongs to whoever created it
func (l *RedisLocker) Close() error {
	return nil
}

// Ensure RedisLocker implements KeyedLocker
var _ shared.KeyedLocker = (*RedisLocker)(nil)
