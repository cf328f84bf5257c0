package service

import (
	"context"
	"errors"
	"time"

	"github.com/proxybid/auctionengine/internal/domain"
)

// withLock acquires the per-key lock, bounded-retrying on contention with
// linear backoff, runs fn while holding it, and releases it on return. It
// returns domain.ErrLockHeld (wrapped as a KindBusy domain.Error) if the
// lock is still held by another party after the first attempt and
// maxRetries retries.
func withLock(ctx context.Context, lm domain.LockManager, key string, ttl time.Duration, maxRetries int, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		unlock, err := lm.Acquire(ctx, key, ttl)
		if err == nil {
			defer unlock()
			return fn(ctx)
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			return domain.Wrap(domain.KindInternal, "failed to acquire lock", err)
		}
		lastErr = err

		if attempt == maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * 100 * time.Millisecond
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return domain.Wrap(domain.KindBusy, "auction is busy, try again", lastErr)
}
