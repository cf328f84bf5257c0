package memory

import (
	"context"
	"sync"
	"time"

	"github.com/proxybid/auctionengine/internal/domain"
)

// LockManager is an in-process implementation of domain.LockManager backed
// by a single mutex over a map of held keys, each with an expiry timer, used
// in place of the Redis-backed lock manager in tests.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*time.Timer
}

// NewLockManager creates an empty in-process LockManager.
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]*time.Timer)}
}

// Acquire obtains the lock for key, returning domain.ErrLockHeld if another
// holder already has it. The lock is automatically released after ttl if the
// caller never calls unlock.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	if _, held := lm.locks[key]; held {
		return nil, domain.ErrLockHeld
	}

	timer := time.AfterFunc(ttl, func() {
		lm.mu.Lock()
		defer lm.mu.Unlock()
		delete(lm.locks, key)
	})
	lm.locks[key] = timer

	released := false
	unlock := func() {
		lm.mu.Lock()
		defer lm.mu.Unlock()
		if released {
			return
		}
		released = true
		timer.Stop()
		delete(lm.locks, key)
	}
	return unlock, nil
}

var _ domain.LockManager = (*LockManager)(nil)
