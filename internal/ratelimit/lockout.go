package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Lockout scopes
const (
	ScopeUser = "user"
	ScopeIP   = "ip"
)

const (
	// DefaultMaxAttempts is the per-subject attempt threshold
	DefaultMaxAttempts = 5

	// DefaultMaxIPAttempts is the per-IP attempt threshold
	DefaultMaxIPAttempts = 20

	// DefaultBlockDuration is how long a locked out subject stays blocked
	DefaultBlockDuration = 15 * time.Minute
)

// ExceededError reports a locked out subject or IP
type ExceededError struct {
	Scope        string
	BlockedUntil time.Time
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("too many attempts for %s, blocked until %s", e.Scope, e.BlockedUntil.Format(time.RFC3339))
}

type attempt struct {
	count        int
	lastAttempt  time.Time
	blockedUntil time.Time
}

// Lockout tracks failed attempts per subject and per IP
type Lockout struct {
	mu            sync.Mutex
	subjects      map[string]attempt
	ips           map[string]attempt
	maxAttempts   int
	maxIPAttempts int
	block         time.Duration
	now           func() time.Time
}

// LockoutOption configures a Lockout
type LockoutOption func(*Lockout)

// WithMaxAttempts sets the per-subject threshold
func WithMaxAttempts(n int) LockoutOption {
	return func(l *Lockout) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

// WithMaxIPAttempts sets the per-IP threshold
func WithMaxIPAttempts(n int) LockoutOption {
	return func(l *Lockout) {
		if n > 0 {
			l.maxIPAttempts = n
		}
	}
}

// WithBlockDuration sets the block length and the idle time after which an
// attempt count restarts
func WithBlockDuration(d time.Duration) LockoutOption {
	return func(l *Lockout) {
		if d > 0 {
			l.block = d
		}
	}
}

// WithLockoutClock sets the time source
func WithLockoutClock(now func() time.Time) LockoutOption {
	return func(l *Lockout) {
		l.now = now
	}
}

// NewLockout creates a Lockout with default thresholds
func NewLockout(opts ...LockoutOption) *Lockout {
	l := &Lockout{
		subjects:      make(map[string]attempt),
		ips:           make(map[string]attempt),
		maxAttempts:   DefaultMaxAttempts,
		maxIPAttempts: DefaultMaxIPAttempts,
		block:         DefaultBlockDuration,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckAndIncrease records an attempt for key and, when ip is not empty, for
// ip. It returns an *ExceededError when either is blocked. The IP is not
// counted when the subject is already blocked.
func (l *Lockout) CheckAndIncrease(_ context.Context, key, ip string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	a := l.advance(l.subjects[key], now, l.maxAttempts)
	l.subjects[key] = a
	if a.blockedUntil.After(now) {
		return &ExceededError{Scope: ScopeUser, BlockedUntil: a.blockedUntil}
	}

	if ip == "" {
		return nil
	}
	ipa := l.advance(l.ips[ip], now, l.maxIPAttempts)
	l.ips[ip] = ipa
	if ipa.blockedUntil.After(now) {
		return &ExceededError{Scope: ScopeIP, BlockedUntil: ipa.blockedUntil}
	}
	return nil
}

// advance applies one attempt. Blocked entries are left untouched until the
// block ends; entries idle for longer than the block duration restart at 1.
func (l *Lockout) advance(prev attempt, now time.Time, limit int) attempt {
	switch {
	case prev.blockedUntil.After(now):
		return prev
	case prev.lastAttempt.Add(l.block).Before(now):
		return attempt{count: 1, lastAttempt: now}
	}

	next := attempt{count: prev.count + 1, lastAttempt: now}
	if next.count > limit {
		next.blockedUntil = now.Add(l.block)
	}
	return next
}

// Sweep forgets entries that are neither blocked nor recent
func (l *Lockout) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for _, m := range []map[string]attempt{l.subjects, l.ips} {
		for k, a := range m {
			if !a.blockedUntil.After(now) && a.lastAttempt.Add(l.block).Before(now) {
				delete(m, k)
			}
		}
	}
}
