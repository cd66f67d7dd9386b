// Package storage provides factory functions for creating the place store.
// It keeps the choice between PostgreSQL, SQLite and memory in one place and
// owns the lifecycle of the resources behind the store.
package storage

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	"github.com/rovits/poi-sync-service/internal/config"
	"github.com/rovits/poi-sync-service/internal/store"
)

// Factory creates the place store and manages the resources it holds
type Factory interface {
	// CreatePlaceStore returns the store used by both the resolver and the
	// sync pipeline. Repeated calls return the same store.
	CreatePlaceStore(ctx context.Context) (store.PlaceStore, error)

	// Cleanup releases any resources held by this factory.
	// For database factories, this closes the connection pool.
	Cleanup()
}

// Option configures a factory
type Option func(*factoryOptions)

type factoryOptions struct {
	tracer trace.Tracer
}

// WithTracer sets the OpenTelemetry tracer for the created store.
// If not set, tracing will be disabled (no-op).
func WithTracer(tracer trace.Tracer) Option {
	return func(o *factoryOptions) {
		o.tracer = tracer
	}
}

// NewStorageFactory creates a storage factory based on the configured store type
func NewStorageFactory(ctx context.Context, cfg *config.Config, opts ...Option) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	o := &factoryOptions{}
	for _, opt := range opts {
		opt(o)
	}

	switch cfg.Store.GetType() {
	case config.StoreTypePostgres:
		return newDatabaseFactory(ctx, cfg, o)
	case config.StoreTypeSQLite:
		return newSQLiteFactory(cfg, o), nil
	case config.StoreTypeMemory:
		return NewMemoryFactory(), nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Store.GetType())
	}
}
