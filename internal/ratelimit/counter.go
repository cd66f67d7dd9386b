// Package ratelimit implements request limiting and failed-attempt lockout.
//
// Limiter counts requests per subject in fixed windows stored in a
// CounterStore. The window expiry is armed by the first increment, so a
// subject's window starts with its first request. The limiter fails open:
// when the counter store is unavailable requests are allowed.
//
// Lockout blocks a subject, and separately its client IP, for a fixed
// duration after too many failed attempts.
package ratelimit

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mocks/mock_counter.go -package=mocks -source=counter.go CounterStore

// CounterStore holds windowed counters
type CounterStore interface {
	// Incr atomically increments key and returns the new count. When the
	// increment creates the counter, it expires after window.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}
