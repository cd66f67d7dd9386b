package places

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateArea(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		lat       float64
		lng       float64
		radius    float64
		wantField string
	}{
		{name: "valid", lat: 41.0082, lng: 28.9784, radius: 5000},
		{name: "max radius", lat: 0, lng: 0, radius: MaxRadiusMeters},
		{name: "lat too low", lat: -90.1, lng: 0, radius: 10, wantField: "lat"},
		{name: "lat too high", lat: 90.1, lng: 0, radius: 10, wantField: "lat"},
		{name: "lng too high", lat: 0, lng: 180.5, radius: 10, wantField: "lng"},
		{name: "zero radius", lat: 0, lng: 0, radius: 0, wantField: "radius"},
		{name: "radius over limit", lat: 0, lng: 0, radius: MaxRadiusMeters + 1, wantField: "radius"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateArea(tt.lat, tt.lng, tt.radius)
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.wantField, vErr.Field)
		})
	}
}

func TestValidateInputs(t *testing.T) {
	t.Parallel()

	assert.Error(t, ValidateQuery("   "))
	assert.NoError(t, ValidateQuery("pizza"))
	assert.Error(t, ValidatePlaceID(""))
	assert.NoError(t, ValidatePlaceID("ChIJ123"))
	assert.Error(t, ValidateMaxResults(0))
	assert.Error(t, ValidateMaxResults(MaxResultCount+1))
	assert.NoError(t, ValidateMaxResults(MaxResultCount))
}

func TestDistanceKm(t *testing.T) {
	t.Parallel()

	istanbul := Point{Lat: 41.0082, Lng: 28.9784}
	ankara := Point{Lat: 39.9334, Lng: 32.8597}

	assert.InDelta(t, 0, DistanceKm(istanbul, istanbul), 1e-9)
	assert.InDelta(t, 350, DistanceKm(istanbul, ankara), 5)
}

func TestBoundingBoxContainsCircle(t *testing.T) {
	t.Parallel()

	center := Point{Lat: 41.0082, Lng: 28.9784}
	minLat, maxLat, minLng, maxLng := BoundingBox(center, 5)

	assert.Less(t, minLat, center.Lat)
	assert.Greater(t, maxLat, center.Lat)
	assert.Less(t, minLng, center.Lng)
	assert.Greater(t, maxLng, center.Lng)
	assert.InDelta(t, 5, DistanceKm(center, Point{Lat: maxLat, Lng: center.Lng}), 0.01)
}

func TestBoundingBoxEdges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		center  Point
		km      float64
		inside  Point
		wrapped bool
	}{
		{
			name:    "east of the antimeridian",
			center:  Point{Lat: -17, Lng: 179.999},
			km:      5,
			inside:  Point{Lat: -17, Lng: -179.999},
			wrapped: true,
		},
		{
			name:    "west of the antimeridian",
			center:  Point{Lat: -17, Lng: -179.999},
			km:      5,
			inside:  Point{Lat: -17, Lng: 179.999},
			wrapped: true,
		},
		{
			name:   "circle over the pole spans every longitude",
			center: Point{Lat: 89.99, Lng: 10},
			km:     5,
			inside: Point{Lat: 89.99, Lng: -170},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			minLat, maxLat, minLng, maxLng := BoundingBox(tt.center, tt.km)
			require.LessOrEqual(t, DistanceKm(tt.center, tt.inside), tt.km)
			assert.Equal(t, tt.wrapped, minLng > maxLng)
			assert.GreaterOrEqual(t, minLng, -180.0)
			assert.LessOrEqual(t, maxLng, 180.0)

			assert.True(t, tt.inside.Lat >= minLat && tt.inside.Lat <= maxLat)
			if tt.wrapped {
				assert.True(t, tt.inside.Lng >= minLng || tt.inside.Lng <= maxLng)
			} else {
				assert.True(t, tt.inside.Lng >= minLng && tt.inside.Lng <= maxLng)
			}
		})
	}
}

func TestMapping(t *testing.T) {
	t.Parallel()

	t.Run("details with missing fields get placeholders", func(t *testing.T) {
		t.Parallel()
		rec := PlaceDetails{ID: "p1"}.ToRecord("cafe")
		assert.Equal(t, "p1", rec.ID)
		assert.Equal(t, UnnamedPlace, rec.Name)
		assert.Equal(t, NoAddress, rec.Address)
		assert.Equal(t, "cafe", rec.Type)
		assert.Nil(t, rec.Location)
	})

	t.Run("details round trip through record", func(t *testing.T) {
		t.Parallel()
		open := true
		details := PlaceDetails{
			ID:               "p2",
			DisplayName:      &DisplayName{Text: "Cafe", LanguageCode: "en"},
			FormattedAddress: "Main St 1",
			OpeningHours:     &OpeningHours{OpenNow: &open, WeekdayDescriptions: []string{"Monday: 9-17"}},
			Location:         &LatLng{Latitude: 1.5, Longitude: 2.5},
		}
		got := details.ToRecord("cafe").ToDetails("en")
		assert.Equal(t, details, got)
	})

	t.Run("nearby stub", func(t *testing.T) {
		t.Parallel()
		rec := NearbyPlace{
			ID:          "p3",
			DisplayName: &DisplayName{Text: "Pizza"},
			Location:    &LatLng{Latitude: 3, Longitude: 4},
		}.ToRecord("restaurant")
		assert.Equal(t, "Pizza", rec.Name)
		assert.Equal(t, &Point{Lat: 3, Lng: 4}, rec.Location)
		assert.Equal(t, "restaurant", rec.Type)
	})
}
