package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNearbyKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		lat    float64
		lng    float64
		radius float64
		typ    string
		want   string
	}{
		{
			name:   "fixed scale",
			lat:    41.0082,
			lng:    28.9784,
			radius: 5000,
			typ:    "restaurant",
			want:   "search:nearby:41.008200:28.978400:5000:restaurant",
		},
		{
			name:   "rounds half up at sixth decimal",
			lat:    2.1234567,
			lng:    -1.0000004,
			radius: 1500.5,
			typ:    "cafe",
			want:   "search:nearby:2.123457:-1.000000:1500.5:cafe",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NearbyKey(tt.lat, tt.lng, tt.radius, tt.typ))
		})
	}
}

func TestKeysDiscriminate(t *testing.T) {
	t.Parallel()

	base := NearbyKey(41.0082, 28.9784, 5000, "restaurant")
	assert.NotEqual(t, base, NearbyKey(41.0083, 28.9784, 5000, "restaurant"))
	assert.NotEqual(t, base, NearbyKey(41.0082, 28.9785, 5000, "restaurant"))
	assert.NotEqual(t, base, NearbyKey(41.0082, 28.9784, 5001, "restaurant"))
	assert.NotEqual(t, base, NearbyKey(41.0082, 28.9784, 5000, "cafe"))

	assert.Equal(t, NearbyKey(0.0000001, -0.0000001, 5000, "cafe"), NearbyKey(-0.0000001, 0.0000001, 5000, "cafe"))
	assert.Equal(t, "search:nearby:0.000000:0.000000:5000:cafe", NearbyKey(-0.0000004, -0.0000002, 5000, "cafe"))

	assert.Equal(t, TextKey("  Pizza Place ", "en"), TextKey("pizza place", "en"))
	assert.NotEqual(t, TextKey("pizza", "en"), TextKey("pizza", "tr"))
	assert.Equal(t, "search:text:pizza:en", TextKey("PIZZA", "en"))

	assert.Equal(t, "details:abc", DetailsKey("abc"))
	assert.NotEqual(t, DetailsKey("abc"), DetailsKey("abd"))
}
