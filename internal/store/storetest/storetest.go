// Package storetest holds behavioral tests every store.PlaceStore
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovits/poi-sync-service/internal/places"
	"github.com/rovits/poi-sync-service/internal/store"
)

// Factory returns an empty store whose UpdatedAt values come from now
type Factory func(t *testing.T, now func() time.Time) store.PlaceStore

var (
	center = places.Point{Lat: 41.0082, Lng: 28.9784}
	// roughly 1.1 km north of center
	nearby = places.Point{Lat: 41.0182, Lng: 28.9784}
	// roughly 11 km north of center
	farAway = places.Point{Lat: 41.1082, Lng: 28.9784}
)

func openNow(v bool) *bool { return &v }

// Run executes the shared store behavior suite against newStore
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("find missing returns ErrNotFound", func(t *testing.T) {
		s := newStore(t, time.Now)
		_, err := s.FindByID(context.Background(), "missing")
		require.Error(t, err)
		assert.True(t, errors.Is(err, places.ErrNotFound))
	})

	t.Run("upsert inserts then overwrites", func(t *testing.T) {
		now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
		s := newStore(t, func() time.Time { return now })
		ctx := context.Background()

		rec := places.Record{
			ID:       "p1",
			Name:     "Old Name",
			Address:  "Old Street",
			Type:     "cafe",
			Location: &center,
			OpeningHours: &places.OpeningHours{
				OpenNow:             openNow(true),
				WeekdayDescriptions: []string{"Monday: 09:00-17:00"},
			},
		}
		require.NoError(t, s.Upsert(ctx, rec))

		got, err := s.FindByID(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "Old Name", got.Name)
		assert.Equal(t, "cafe", got.Type)
		require.NotNil(t, got.Location)
		assert.InDelta(t, center.Lat, got.Location.Lat, 1e-9)
		assert.InDelta(t, center.Lng, got.Location.Lng, 1e-9)
		require.NotNil(t, got.OpeningHours)
		assert.Equal(t, []string{"Monday: 09:00-17:00"}, got.OpeningHours.WeekdayDescriptions)
		assert.True(t, *got.OpeningHours.OpenNow)
		assert.True(t, got.UpdatedAt.Equal(now))

		now = now.Add(time.Hour)
		rec.Name = "New Name"
		rec.Address = "New Street"
		rec.OpeningHours = nil
		require.NoError(t, s.Upsert(ctx, rec))

		got, err = s.FindByID(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "New Name", got.Name)
		assert.Equal(t, "New Street", got.Address)
		assert.Nil(t, got.OpeningHours)
		assert.True(t, got.UpdatedAt.Equal(now))
	})

	t.Run("upsert is idempotent", func(t *testing.T) {
		s := newStore(t, time.Now)
		ctx := context.Background()

		rec := places.Record{ID: "p1", Name: "Cafe", Address: "Street", Type: "cafe", Location: &center}
		require.NoError(t, s.UpsertMany(ctx, []places.Record{rec, rec}))
		require.NoError(t, s.Upsert(ctx, rec))

		found, err := s.FindNear(ctx, center, 1, "")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "Cafe", found[0].Name)
	})

	t.Run("find near filters by distance and type", func(t *testing.T) {
		s := newStore(t, time.Now)
		ctx := context.Background()

		require.NoError(t, s.UpsertMany(ctx, []places.Record{
			{ID: "near-cafe", Name: "Near Cafe", Address: "a", Type: "cafe", Location: &nearby},
			{ID: "center-cafe", Name: "Center Cafe", Address: "b", Type: "cafe", Location: &center},
			{ID: "near-bar", Name: "Near Bar", Address: "c", Type: "bar", Location: &nearby},
			{ID: "far-cafe", Name: "Far Cafe", Address: "d", Type: "cafe", Location: &farAway},
			{ID: "no-location", Name: "Nowhere", Address: "e", Type: "cafe"},
		}))

		cafes, err := s.FindNear(ctx, center, 5, "cafe")
		require.NoError(t, err)
		require.Len(t, cafes, 2)
		assert.Equal(t, "center-cafe", cafes[0].ID, "results are ordered by distance")
		assert.Equal(t, "near-cafe", cafes[1].ID)

		all, err := s.FindNear(ctx, center, 5, "")
		require.NoError(t, err)
		assert.Len(t, all, 3)

		wide, err := s.FindNear(ctx, center, 20, "cafe")
		require.NoError(t, err)
		assert.Len(t, wide, 3)

		none, err := s.FindNear(ctx, center, 5, "museum")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("find near across the antimeridian", func(t *testing.T) {
		s := newStore(t, time.Now)
		ctx := context.Background()

		east := places.Point{Lat: -17, Lng: 179.999}
		sameSide := places.Point{Lat: -17, Lng: 179.998}
		farSide := places.Point{Lat: -17, Lng: -179.999}
		require.NoError(t, s.UpsertMany(ctx, []places.Record{
			{ID: "far-side", Name: "Far Side", Address: "a", Type: "cafe", Location: &farSide},
			{ID: "same-side", Name: "Same Side", Address: "b", Type: "cafe", Location: &sameSide},
		}))

		found, err := s.FindNear(ctx, east, 5, "cafe")
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, "same-side", found[0].ID)
		assert.Equal(t, "far-side", found[1].ID)

		found, err = s.FindNear(ctx, farSide, 5, "")
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})

	t.Run("find by text ranks name over address", func(t *testing.T) {
		s := newStore(t, time.Now)
		ctx := context.Background()

		require.NoError(t, s.UpsertMany(ctx, []places.Record{
			{ID: "blue-cafe", Name: "Blue Bottle Cafe", Address: "Market Street 1", Type: "cafe"},
			{ID: "market-bakery", Name: "Market Bakery", Address: "Blue Lane 4", Type: "bakery"},
			{ID: "tea-house", Name: "Green Tea House", Address: "Hill Road 9", Type: "cafe"},
		}))

		tests := []struct {
			query string
			want  []string
		}{
			{query: "BLUE", want: []string{"blue-cafe", "market-bakery"}},
			{query: "market", want: []string{"market-bakery", "blue-cafe"}},
			{query: "hill", want: []string{"tea-house"}},
			{query: "museum", want: []string{}},
			{query: "   ", want: []string{}},
		}
		for _, tt := range tests {
			found, err := s.FindByText(ctx, tt.query)
			require.NoError(t, err, tt.query)

			ids := make([]string, 0, len(found))
			for _, rec := range found {
				ids = append(ids, rec.ID)
			}
			assert.Equal(t, tt.want, ids, tt.query)
		}
	})

	t.Run("upsert many with empty input", func(t *testing.T) {
		s := newStore(t, time.Now)
		require.NoError(t, s.UpsertMany(context.Background(), nil))
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t, time.Now)
		require.NoError(t, s.Ping(context.Background()))
	})
}
