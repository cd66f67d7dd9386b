package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Limiter decides whether a subject exceeded its request budget
type Limiter struct {
	store CounterStore
}

// NewLimiter creates a limiter over store
func NewLimiter(store CounterStore) *Limiter {
	return &Limiter{store: store}
}

// IsExceeded counts one request for key and reports whether the count in the
// current window is above limit. Counter failures are logged and allow the
// request.
func (l *Limiter) IsExceeded(ctx context.Context, key string, limit int, window time.Duration) bool {
	count, err := l.store.Incr(ctx, key, window)
	if err != nil {
		slog.WarnContext(ctx, "Rate limit counter unavailable, allowing request", "key", key, "error", err)
		return false
	}
	return count > int64(limit)
}
