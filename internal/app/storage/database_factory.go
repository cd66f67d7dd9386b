package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rovits/poi-sync-service/internal/config"
	"github.com/rovits/poi-sync-service/internal/db"
	"github.com/rovits/poi-sync-service/internal/store"
	"github.com/rovits/poi-sync-service/internal/store/database"
)

// DatabaseFactory creates the PostgreSQL/PostGIS place store
type DatabaseFactory struct {
	pool  *pgxpool.Pool
	opts  *factoryOptions
	store store.PlaceStore
}

var _ Factory = (*DatabaseFactory)(nil)

// newDatabaseFactory establishes a connection pool to the configured
// PostgreSQL database
func newDatabaseFactory(ctx context.Context, cfg *config.Config, opts *factoryOptions) (*DatabaseFactory, error) {
	if cfg.Store.Database == nil {
		return nil, fmt.Errorf("database configuration is required for postgres store type")
	}

	slog.Info("Creating database-backed storage factory")

	pool, err := db.NewPool(ctx, cfg.Store.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	return &DatabaseFactory{pool: pool, opts: opts}, nil
}

// CreatePlaceStore creates the database-backed place store
func (d *DatabaseFactory) CreatePlaceStore(_ context.Context) (store.PlaceStore, error) {
	if d.store != nil {
		return d.store, nil
	}

	opts := []database.Option{database.WithConnectionPool(d.pool)}
	if d.opts.tracer != nil {
		opts = append(opts, database.WithTracer(d.opts.tracer))
		slog.Debug("Database store tracing enabled")
	}

	st, err := database.New(opts...)
	if err != nil {
		return nil, err
	}
	d.store = st
	return st, nil
}

// Cleanup closes the database connection pool
func (d *DatabaseFactory) Cleanup() {
	if d.pool != nil {
		slog.Info("Closing database connection pool")
		d.pool.Close()
	}
}
