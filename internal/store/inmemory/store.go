// Package inmemory provides a process-local store.PlaceStore used for
// development and tests.
package inmemory

import (
	"context"
	"fmt"
	"cmp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rovits/poi-sync-service/internal/places"
	"github.com/rovits/poi-sync-service/internal/store"
)

// Option configures the in-memory store
type Option func(*Store) error

// WithClock overrides the time source used for UpdatedAt
func WithClock(now func() time.Time) Option {
	return func(s *Store) error {
		if now == nil {
			return fmt.Errorf("clock is required")
		}
		s.now = now
		return nil
	}
}

// Store keeps records in a map guarded by a RWMutex
type Store struct {
	mu      sync.RWMutex
	records map[string]places.Record
	now     func() time.Time
}

var _ store.PlaceStore = (*Store)(nil)

// New creates an empty store
func New(opts ...Option) (*Store, error) {
	s := &Store{
		records: make(map[string]places.Record),
		now:     time.Now,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func clone(rec places.Record) places.Record {
	if rec.Location != nil {
		loc := *rec.Location
		rec.Location = &loc
	}
	if rec.OpeningHours != nil {
		oh := *rec.OpeningHours
		if oh.OpenNow != nil {
			v := *oh.OpenNow
			oh.OpenNow = &v
		}
		oh.WeekdayDescriptions = slices.Clone(oh.WeekdayDescriptions)
		rec.OpeningHours = &oh
	}
	return rec
}

// FindByID returns the record with the given id
func (s *Store) FindByID(_ context.Context, id string) (*places.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, places.ErrNotFound
	}
	out := clone(rec)
	return &out, nil
}

// FindNear scans all records and keeps the ones within distanceKm
func (s *Store) FindNear(
	_ context.Context, center places.Point, distanceKm float64, placeType string,
) ([]places.Record, error) {
	type hit struct {
		rec  places.Record
		dist float64
	}

	s.mu.RLock()
	var hits []hit
	for _, rec := range s.records {
		if rec.Location == nil || (placeType != "" && rec.Type != placeType) {
			continue
		}
		if d := places.DistanceKm(center, *rec.Location); d <= distanceKm {
			hits = append(hits, hit{rec: clone(rec), dist: d})
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(hits, func(a, b hit) int {
		switch {
		case a.dist < b.dist:
			return -1
		case a.dist > b.dist:
			return 1
		default:
			return 0
		}
	})

	out := make([]places.Record, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.rec)
	}
	return out, nil
}

// FindByText scans all records for a case-insensitive substring match
func (s *Store) FindByText(_ context.Context, query string) ([]places.Record, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []places.Record{}, nil
	}

	type hit struct {
		rec   places.Record
		score int
	}

	s.mu.RLock()
	var hits []hit
	for _, rec := range s.records {
		score := 0
		if strings.Contains(strings.ToLower(rec.Name), q) {
			score += 2
		}
		if strings.Contains(strings.ToLower(rec.Address), q) {
			score++
		}
		if score > 0 {
			hits = append(hits, hit{rec: clone(rec), score: score})
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.rec.Name, b.rec.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.rec.ID, b.rec.ID)
	})

	out := make([]places.Record, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.rec)
	}
	return out, nil
}

// Upsert stores rec, replacing any record with the same id
func (s *Store) Upsert(_ context.Context, rec places.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	rec = clone(rec)
	rec.UpdatedAt = s.now()

	s.mu.Lock()
	s.records[rec.ID] = rec
	s.mu.Unlock()
	return nil
}

// UpsertMany stores all records under a single lock
func (s *Store) UpsertMany(_ context.Context, recs []places.Record) error {
	for _, rec := range recs {
		if rec.ID == "" {
			return fmt.Errorf("record id is required")
		}
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		rec = clone(rec)
		rec.UpdatedAt = now
		s.records[rec.ID] = rec
	}
	return nil
}

// Ping always succeeds
func (*Store) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored records
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
