//go:build integration

package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rovits/poi-sync-service/database"
	"github.com/rovits/poi-sync-service/internal/places"
	"github.com/rovits/poi-sync-service/internal/store"
	"github.com/rovits/poi-sync-service/internal/store/storetest"
)

func TestStore(t *testing.T) {
	t.Parallel()

	storetest.Run(t, func(t *testing.T, now func() time.Time) store.PlaceStore {
		t.Helper()
		pool, _ := database.SetupTestDB(t)
		s, err := New(WithConnectionPool(pool), WithClock(now))
		require.NoError(t, err)
		return s
	})
}

func TestUpsertManyRollsBack(t *testing.T) {
	t.Parallel()

	pool, _ := database.SetupTestDB(t)
	s, err := New(WithConnectionPool(pool))
	require.NoError(t, err)

	ctx := context.Background()
	err = s.UpsertMany(ctx, []places.Record{
		{ID: "p1", Name: "A", Address: "a"},
		{ID: "", Name: "broken", Address: "b"},
	})
	require.Error(t, err)

	_, err = s.FindByID(ctx, "p1")
	require.ErrorIs(t, err, places.ErrNotFound)
}
