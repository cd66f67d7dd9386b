package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounterStore is a process-local CounterStore
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]window
	now      func() time.Time
}

var _ CounterStore = (*MemoryCounterStore)(nil)

// MemoryOption configures a MemoryCounterStore
type MemoryOption func(*MemoryCounterStore)

// WithMemoryClock sets the time source
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryCounterStore) {
		s.now = now
	}
}

// NewMemoryCounterStore creates an empty store
func NewMemoryCounterStore(opts ...MemoryOption) *MemoryCounterStore {
	s := &MemoryCounterStore{
		counters: make(map[string]window),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Incr implements CounterStore. Expired windows are reset lazily.
func (s *MemoryCounterStore) Incr(_ context.Context, key string, win time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.counters[key]
	if !ok || !now.Before(w.expiresAt) {
		w = window{expiresAt: now.Add(win)}
	}
	w.count++
	s.counters[key] = w
	return w.count, nil
}

// Sweep drops expired windows and returns how many were removed
func (s *MemoryCounterStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, w := range s.counters {
		if !now.Before(w.expiresAt) {
			delete(s.counters, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked windows
func (s *MemoryCounterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}
