package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rovits/poi-sync-service/internal/config"
	"github.com/rovits/poi-sync-service/internal/store"
	"github.com/rovits/poi-sync-service/internal/store/sqlite"
)

// SQLiteFactory creates the embedded SQLite place store
type SQLiteFactory struct {
	path  string
	opts  *factoryOptions
	store *sqlite.Store
}

var _ Factory = (*SQLiteFactory)(nil)

func newSQLiteFactory(cfg *config.Config, opts *factoryOptions) *SQLiteFactory {
	return &SQLiteFactory{path: cfg.Store.SQLite.GetPath(), opts: opts}
}

// CreatePlaceStore opens the database file, creating its directory when needed
func (f *SQLiteFactory) CreatePlaceStore(ctx context.Context) (store.PlaceStore, error) {
	if f.store != nil {
		return f.store, nil
	}

	if f.path != sqlite.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(f.path), 0750); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	opts := []sqlite.Option{sqlite.WithPath(f.path)}
	if f.opts.tracer != nil {
		opts = append(opts, sqlite.WithTracer(f.opts.tracer))
	}

	st, err := sqlite.Open(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	slog.Info("SQLite place store opened", "path", f.path)

	f.store = st
	return st, nil
}

// Cleanup closes the database file
func (f *SQLiteFactory) Cleanup() {
	if f.store == nil {
		return
	}
	if err := f.store.Close(); err != nil {
		slog.Error("Failed to close sqlite store", "error", err)
	}
}
