package shared

import (
	"context"
	"errors"
	"time"
)

// ErrLockHeld is returned when a key is already locked by another holder
var ErrLockHeld = errors.New("shared: lock held by another process")

// Unlocker releases a previously acquired lock
type Unlocker func(ctx context.Context) error

// KeyedLocker provides mutual exclusion per key across processes.
// Acquire does not wait: it returns ErrLockHeld immediately when the key is taken.
type KeyedLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Unlocker, error)
	Close() error
}
