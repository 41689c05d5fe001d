package limiter

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/bapkit/bapvault/internal/errs"
	"github.com/bapkit/bapvault/internal/store"
)

// StoreLimiter counts failures in the shared store with a fixed window:
// maxFails failures inside the window lock the (bapId, ip) pair out until the
// window key expires.
type StoreLimiter struct {
	store    store.Store
	window   time.Duration
	maxFails int64
}

var _ Limiter = (*StoreLimiter)(nil)

// New constructs a store-backed limiter.
func New(s store.Store, window time.Duration, maxFails int) *StoreLimiter {
	if window < minWindow {
		window = minWindow
	}
	if maxFails <= 0 {
		maxFails = 5
	}
	return &StoreLimiter{store: s, window: window, maxFails: int64(maxFails)}
}

func (l *StoreLimiter) Allow(ctx context.Context, bapID, ipHash string) (bool, error) {
	raw, err := l.store.Get(ctx, store.RateLimitKey(bapID, ipHash))
	if errors.Is(err, errs.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	n, _ := strconv.ParseInt(raw, 10, 64)
	return n < l.maxFails, nil
}

func (l *StoreLimiter) Success(ctx context.Context, bapID, ipHash string) error {
	return l.store.Del(ctx, store.RateLimitKey(bapID, ipHash))
}

func (l *StoreLimiter) Failure(ctx context.Context, bapID, ipHash string) (bool, error) {
	n, err := l.store.IncrWindow(ctx, store.RateLimitKey(bapID, ipHash), l.window)
	if err != nil {
		return false, err
	}
	return n >= l.maxFails, nil
}
