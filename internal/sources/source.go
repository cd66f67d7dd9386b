// Package sources defines the external tier of place resolution: the
// upstream places API that is consulted when neither the cache nor the store
// can answer a request.
//
// Implementations:
//   - google: Google Places API (v1) over HTTP, in the google subpackage
package sources

import (
	"context"

	"github.com/rovits/poi-sync-service/internal/places"
)

//go:generate mockgen -destination=mocks/mock_source.go -package=mocks -source=source.go PlaceSource

// PlaceSource is an upstream places provider. Every failure is reported as a
// *places.ExternalSourceError.
type PlaceSource interface {
	// SearchNearby returns the place stubs of placeType within radius meters
	// of the given point
	SearchNearby(ctx context.Context, lat, lng, radius float64, placeType string) (*places.SearchNearbyResponse, error)

	// SearchText runs a free text query. bias may be nil.
	SearchText(
		ctx context.Context, query, lang string, maxResults int, bias *places.LocationBias,
	) (*places.SearchTextResponse, error)

	// GetDetails returns the full record of a single place
	GetDetails(ctx context.Context, placeID string) (*places.PlaceDetails, error)
}
