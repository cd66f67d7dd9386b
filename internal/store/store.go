// Package store defines the persistent tier of place resolution and the
// write target of the sync pipeline.
package store

import (
	"context"

	"github.com/rovits/poi-sync-service/internal/places"
)

// PlaceStore persists place records keyed by their upstream id. Writes are
// unconditional upserts; the last write for an id wins and refreshes
// UpdatedAt.
type PlaceStore interface {
	// FindByID returns places.ErrNotFound when no record has the given id
	FindByID(ctx context.Context, id string) (*places.Record, error)

	// FindNear returns located records within distanceKm of center ordered
	// by distance. An empty placeType matches every type.
	FindNear(ctx context.Context, center places.Point, distanceKm float64, placeType string) ([]places.Record, error)

	// FindByText matches query case-insensitively against name and address.
	// Name matches rank ahead of address matches. A blank query matches nothing.
	FindByText(ctx context.Context, query string) ([]places.Record, error)

	Upsert(ctx context.Context, rec places.Record) error

	// UpsertMany writes all records or none
	UpsertMany(ctx context.Context, recs []places.Record) error

	// Ping reports whether the backend is reachable
	Ping(ctx context.Context) error
}
