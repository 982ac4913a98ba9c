package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys that were already handled, such as webhook
// delivery ids, for a bounded time.
type IdempotencyStore interface {
	// MarkProcessed records key and reports whether this call was the first
	// to do so. Concurrent callers for the same key see exactly one true.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, key string) (bool, error)
	Close() error
}

// IdempotencyConfig controls duplicate suppression around an event handler
type IdempotencyConfig struct {
	TTL     time.Duration
	Enabled bool
}

// DefaultIdempotencyConfig keeps keys for a day, longer than the storefront
// keeps retrying a failed delivery.
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{TTL: 24 * time.Hour, Enabled: true}
}
