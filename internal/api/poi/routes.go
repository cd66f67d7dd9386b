// Package poi provides the REST API handlers for place lookups.
package poi

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rovits/poi-sync-service/internal/api/common"
	"github.com/rovits/poi-sync-service/internal/places"
	"github.com/rovits/poi-sync-service/internal/resolver"
)

const (
	// DefaultRadius is used when a nearby search omits radius
	DefaultRadius = 5000.0

	// DefaultPlaceType is used when a nearby search omits type
	DefaultPlaceType = "restaurant"
)

// Resolver answers place lookups. resolver.Service implements it, and so
// does any sources.PlaceSource.
type Resolver interface {
	SearchNearby(ctx context.Context, lat, lng, radius float64, placeType string) (*places.SearchNearbyResponse, error)
	SearchText(
		ctx context.Context, query, lang string, maxResults int, bias *places.LocationBias,
	) (*places.SearchTextResponse, error)
	GetDetails(ctx context.Context, placeID string) (*places.PlaceDetails, error)
}

// Routes holds the place handlers
type Routes struct {
	resolver Resolver
}

// NewRoutes creates a new Routes instance
func NewRoutes(r Resolver) *Routes {
	return &Routes{resolver: r}
}

// Router creates the router mounted at /api/places
func Router(res Resolver) http.Handler {
	routes := NewRoutes(res)

	r := chi.NewRouter()
	r.Use(languageMiddleware)
	r.Get("/nearby", routes.searchNearby)
	r.Get("/text-search", routes.searchText)
	r.Get("/details/{placeId}", routes.getDetails)

	return r
}

// searchNearby handles GET /api/places/nearby
func (rr *Routes) searchNearby(w http.ResponseWriter, r *http.Request) {
	lat, err := common.QueryFloat(r, "lat", 0, true)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	lng, err := common.QueryFloat(r, "lng", 0, true)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	radius, err := common.QueryFloat(r, "radius", DefaultRadius, false)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	if err := places.ValidateArea(lat, lng, radius); err != nil {
		common.WriteError(w, r, err)
		return
	}

	resp, err := rr.resolver.SearchNearby(r.Context(), lat, lng, radius, common.QueryString(r, "type", DefaultPlaceType))
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, resp, http.StatusOK)
}

// searchText handles GET /api/places/text-search. lat, lng and radius are
// optional and, when lat and lng are both present, bias the search.
func (rr *Routes) searchText(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if err := places.ValidateQuery(query); err != nil {
		common.WriteError(w, r, err)
		return
	}
	maxResults, err := common.QueryInt(r, "maxResults", places.MaxResultCount)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	if err := places.ValidateMaxResults(maxResults); err != nil {
		common.WriteError(w, r, err)
		return
	}
	bias, err := locationBias(r)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}

	lang := common.QueryString(r, "languageCode", resolver.DefaultLanguage)
	resp, err := rr.resolver.SearchText(r.Context(), query, lang, maxResults, bias)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, resp, http.StatusOK)
}

// getDetails handles GET /api/places/details/{placeId}
func (rr *Routes) getDetails(w http.ResponseWriter, r *http.Request) {
	placeID, err := common.GetAndValidateURLParam(r, "placeId")
	if err != nil {
		common.WriteError(w, r, err)
		return
	}

	details, err := rr.resolver.GetDetails(r.Context(), placeID)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.WriteJSONResponse(w, details, http.StatusOK)
}

func locationBias(r *http.Request) (*places.LocationBias, error) {
	if !common.HasQuery(r, "lat") || !common.HasQuery(r, "lng") {
		return nil, nil
	}
	lat, err := common.QueryFloat(r, "lat", 0, true)
	if err != nil {
		return nil, err
	}
	lng, err := common.QueryFloat(r, "lng", 0, true)
	if err != nil {
		return nil, err
	}
	radius, err := common.QueryFloat(r, "radius", DefaultRadius, false)
	if err != nil {
		return nil, err
	}
	if err := places.ValidateArea(lat, lng, radius); err != nil {
		return nil, err
	}
	return &places.LocationBias{Circle: places.Circle{
		Center: places.LatLng{Latitude: lat, Longitude: lng},
		Radius: radius,
	}}, nil
}

// languageMiddleware carries the primary Accept-Language tag to the resolver
func languageMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if lang := PrimaryLanguage(r.Header.Get("Accept-Language")); lang != "" {
			r = r.WithContext(resolver.WithLanguage(r.Context(), lang))
		}
		next.ServeHTTP(w, r)
	})
}

// PrimaryLanguage returns the first language tag of an Accept-Language
// header without its quality value
func PrimaryLanguage(header string) string {
	first, _, _ := strings.Cut(header, ",")
	tag, _, _ := strings.Cut(first, ";")
	tag = strings.TrimSpace(tag)
	if tag == "*" {
		return ""
	}
	return tag
}
