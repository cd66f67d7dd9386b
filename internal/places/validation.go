package places

import (
	"math"
	"strings"
)

const (
	// MaxRadiusMeters is the largest accepted search radius
	MaxRadiusMeters = 50000

	// MaxResultCount is the largest page size the upstream text search accepts
	MaxResultCount = 20

	earthRadiusKm = 6371.0
)

// ValidateCoordinates checks that lat and lng are within WGS84 bounds
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return NewValidationError("lat", "must be between -90 and 90, got %v", lat)
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return NewValidationError("lng", "must be between -180 and 180, got %v", lng)
	}
	return nil
}

// ValidateRadius checks 0 < radius <= MaxRadiusMeters
func ValidateRadius(radius float64) error {
	if math.IsNaN(radius) || radius <= 0 || radius > MaxRadiusMeters {
		return NewValidationError("radius", "must be greater than 0 and at most %d meters, got %v", MaxRadiusMeters, radius)
	}
	return nil
}

// ValidateArea validates a center point and radius
func ValidateArea(lat, lng, radius float64) error {
	if err := ValidateCoordinates(lat, lng); err != nil {
		return err
	}
	return ValidateRadius(radius)
}

// ValidateQuery rejects blank text queries
func ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return NewValidationError("query", "must not be blank")
	}
	return nil
}

// ValidatePlaceID rejects blank place ids
func ValidatePlaceID(id string) error {
	if strings.TrimSpace(id) == "" {
		return NewValidationError("placeId", "must not be blank")
	}
	return nil
}

// ValidateMaxResults checks 1 <= n <= MaxResultCount
func ValidateMaxResults(n int) error {
	if n < 1 || n > MaxResultCount {
		return NewValidationError("maxResults", "must be between 1 and %d, got %d", MaxResultCount, n)
	}
	return nil
}

// DistanceKm returns the great-circle distance between two points
func DistanceKm(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// BoundingBox returns the lat/lng box enclosing a circle of distanceKm around
// center. It is used as an index-friendly prefilter before exact distance checks.
// When the circle crosses the antimeridian minLng is greater than maxLng and the
// box covers [minLng, 180] and [-180, maxLng]. A circle reaching a pole spans
// every longitude.
func BoundingBox(center Point, distanceKm float64) (minLat, maxLat, minLng, maxLng float64) {
	r := distanceKm / earthRadiusKm
	dLat := r * 180 / math.Pi
	minLat = center.Lat - dLat
	maxLat = center.Lat + dLat
	if minLat <= -90 || maxLat >= 90 {
		return math.Max(-90, minLat), math.Min(90, maxLat), -180, 180
	}

	dLng := math.Asin(math.Min(1, math.Sin(r)/math.Cos(center.Lat*math.Pi/180))) * 180 / math.Pi
	minLng = center.Lng - dLng
	maxLng = center.Lng + dLng
	if minLng < -180 {
		minLng += 360
	}
	if maxLng > 180 {
		maxLng -= 360
	}
	return minLat, maxLat, minLng, maxLng
}
