package cache

import (
	"math"
	"strconv"
	"strings"
)

const (
	nearbyPrefix  = "search:nearby:"
	textPrefix    = "search:text:"
	detailsPrefix = "details:"

	coordinateScale = 1e6
)

// roundCoordinate rounds half away from zero to six decimals and renders the
// value with a fixed scale so equal coordinates always produce equal keys.
// Negative zero is folded into zero.
func roundCoordinate(v float64) string {
	r := math.Round(v*coordinateScale) / coordinateScale
	if r == 0 {
		r = 0
	}
	return strconv.FormatFloat(r, 'f', 6, 64)
}

// NearbyKey builds the cache key of a nearby search
func NearbyKey(lat, lng, radius float64, placeType string) string {
	return nearbyPrefix +
		roundCoordinate(lat) + ":" +
		roundCoordinate(lng) + ":" +
		strconv.FormatFloat(radius, 'f', -1, 64) + ":" +
		placeType
}

// TextKey builds the cache key of a text search. The query is trimmed and
// lower-cased; the language code is kept as given.
func TextKey(query, languageCode string) string {
	return textPrefix + strings.ToLower(strings.TrimSpace(query)) + ":" + languageCode
}

// DetailsKey builds the cache key of a details lookup
func DetailsKey(placeID string) string {
	return detailsPrefix + placeID
}
