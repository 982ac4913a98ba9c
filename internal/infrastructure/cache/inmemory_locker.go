package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/erp/invoicesync/internal/domain/shared"
)

type lockEntry struct {
	token     string
	expiresAt time.Time
}

// InMemoryLocker implements KeyedLocker inside one process.
// Expired locks are taken over lazily on the next Acquire.
type InMemoryLocker struct {
	mu    sync.Mutex
	locks map[string]lockEntry
	now   func() time.Time
}

// NewInMemoryLocker creates a new in-memory locker
func NewInMemoryLocker() *InMemoryLocker {
	return &InMemoryLocker{
		locks: make(map[string]lockEntry),
		now:   time.Now,
	}
}

// Acquire takes the lock or returns shared.ErrLockHeld without waiting
func (l *InMemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (shared.Unlocker, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive, got %s", ttl)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, held := l.locks[key]; held && now.Before(e.expiresAt) {
		return nil, shared.ErrLockHeld
	}

	token := uuid.NewString()
	l.locks[key] = lockEntry{token: token, expiresAt: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if e, held := l.locks[key]; held && e.token == token {
			delete(l.locks, key)
		}
		return nil
	}, nil
}

// Held returns the number of live locks (for testing/monitoring)
func (l *InMemoryLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	n := 0
	for _, e := range l.locks {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}

// Close releases nothing; locks die with the process
func (l *InMemoryLocker) Close() error {
	return nil
}

// Ensure InMemoryLocker implements KeyedLocker
var _ shared.KeyedLocker = (*InMemoryLocker)(nil)
