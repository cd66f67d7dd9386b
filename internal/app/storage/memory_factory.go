package storage

import (
	"context"
	"log/slog"

	"github.com/rovits/poi-sync-service/internal/store"
	"github.com/rovits/poi-sync-service/internal/store/inmemory"
)

// MemoryFactory creates a process-local place store. Data is lost on exit.
type MemoryFactory struct {
	store *inmemory.Store
}

var _ Factory = (*MemoryFactory)(nil)

// NewMemoryFactory creates a new in-memory storage factory
func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{}
}

// CreatePlaceStore creates the in-memory store on first use
func (f *MemoryFactory) CreatePlaceStore(_ context.Context) (store.PlaceStore, error) {
	if f.store != nil {
		return f.store, nil
	}

	st, err := inmemory.New()
	if err != nil {
		return nil, err
	}
	slog.Warn("Using in-memory place store, records are not persisted")

	f.store = st
	return st, nil
}

// Cleanup is a no-op
func (*MemoryFactory) Cleanup() {}
