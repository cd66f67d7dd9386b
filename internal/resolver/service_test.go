package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/rovits/poi-sync-service/internal/cache"
	cachemocks "github.com/rovits/poi-sync-service/internal/cache/mocks"
	"github.com/rovits/poi-sync-service/internal/places"
	sourcemocks "github.com/rovits/poi-sync-service/internal/sources/mocks"
	"github.com/rovits/poi-sync-service/internal/store"
	"github.com/rovits/poi-sync-service/internal/store/inmemory"
)

func newStore(t *testing.T, recs ...places.Record) *inmemory.Store {
	t.Helper()
	s, err := inmemory.New()
	require.NoError(t, err)
	if len(recs) > 0 {
		require.NoError(t, s.UpsertMany(context.Background(), recs))
	}
	return s
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

var stored = places.Record{
	ID:       "local-1",
	Name:     "Local Cafe",
	Address:  "1 Local St",
	Type:     "cafe",
	Location: &places.Point{Lat: 41.0001, Lng: 29.0001},
}

func TestSearchNearbyCacheHit(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	c := cachemocks.NewMockCache(ctrl)
	src := sourcemocks.NewMockPlaceSource(ctrl)

	hit := places.SearchNearbyResponse{Places: []places.NearbyPlace{{ID: "cached"}}}
	c.EXPECT().Get(gomock.Any(), "search:nearby:41.000000:29.000000:1000:cafe").Return(mustJSON(t, hit), true, nil)

	svc := New(c, newStore(t, stored), src)
	resp, err := svc.SearchNearby(context.Background(), 41, 29, 1000, "cafe")
	require.NoError(t, err)
	require.Len(t, resp.Places, 1)
	assert.Equal(t, "cached", resp.Places[0].ID)
}

func TestSearchNearbyStoreFirst(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	c := cachemocks.NewMockCache(ctrl)
	src := sourcemocks.NewMockPlaceSource(ctrl)

	key := cache.NearbyKey(41, 29, 1000, "cafe")
	c.EXPECT().Get(gomock.Any(), key).Return(nil, false, nil)
	c.EXPECT().Set(gomock.Any(), key, gomock.Any(), DefaultSearchTTL).Return(nil)

	svc := New(c, newStore(t, stored), src)
	resp, err := svc.SearchNearby(WithLanguage(context.Background(), "tr"), 41, 29, 1000, "cafe")
	require.NoError(t, err)
	require.Len(t, resp.Places, 1)
	assert.Equal(t, "local-1", resp.Places[0].ID)
	assert.Equal(t, "Local Cafe", resp.Places[0].DisplayName.Text)
	assert.Equal(t, "tr", resp.Places[0].DisplayName.LanguageCode)
}

func TestSearchNearbyFallsBackToSource(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	src := sourcemocks.NewMockPlaceSource(ctrl)
	mem := cache.NewMemoryCache()
	st := newStore(t)

	remote := &places.SearchNearbyResponse{Places: []places.NearbyPlace{
		{ID: "r1", DisplayName: &places.DisplayName{Text: "Remote"}, Location: &places.LatLng{Latitude: 41, Longitude: 29}},
		{ID: "r2"},
	}}
	src.EXPECT().SearchNearby(gomock.Any(), 41.0, 29.0, 1000.0, "bar").Return(remote, nil)

	svc := New(mem, st, src)
	ctx, cancel := context.WithCancel(context.Background())
	resp, err := svc.SearchNearby(ctx, 41, 29, 1000, "bar")
	cancel()
	require.NoError(t, err)
	assert.Equal(t, remote, resp)

	svc.Wait()
	r1, err := st.FindByID(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "Remote", r1.Name)
	assert.Equal(t, "bar", r1.Type)
	assert.Equal(t, places.NoAddress, r1.Address)

	r2, err := st.FindByID(context.Background(), "r2")
	require.NoError(t, err)
	assert.Equal(t, places.UnnamedPlace, r2.Name)

	// the second identical call is answered by the cache
	again, err := svc.SearchNearby(context.Background(), 41, 29, 1000, "bar")
	require.NoError(t, err)
	assert.Equal(t, remote, again)
}

func TestSearchNearbyCacheFailOpen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(c *cachemocks.MockCache)
	}{
		{
			name: "read error",
			setup: func(c *cachemocks.MockCache) {
				c.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, false, errors.New("connection refused"))
			},
		},
		{
			name: "undecodable entry",
			setup: func(c *cachemocks.MockCache) {
				c.EXPECT().Get(gomock.Any(), gomock.Any()).Return([]byte("{not json"), true, nil)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			c := cachemocks.NewMockCache(ctrl)
			tt.setup(c)
			c.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("read only"))

			svc := New(c, newStore(t, stored), sourcemocks.NewMockPlaceSource(ctrl))
			resp, err := svc.SearchNearby(context.Background(), 41, 29, 1000, "cafe")
			require.NoError(t, err)
			require.Len(t, resp.Places, 1)
		})
	}
}

func TestSearchNearbySourceError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	src := sourcemocks.NewMockPlaceSource(ctrl)
	srcErr := &places.ExternalSourceError{Service: "Google Places API", StatusCode: 503, Cause: errors.New("down")}
	src.EXPECT().SearchNearby(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, srcErr)

	mem := cache.NewMemoryCache()
	svc := New(mem, newStore(t), src)
	_, err := svc.SearchNearby(context.Background(), 41, 29, 1000, "cafe")

	var target *places.ExternalSourceError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, "Google Places API", target.Service)
	assert.Zero(t, mem.Len(), "failures are not cached")
}

// brokenStore fails every read
type brokenStore struct {
	store.PlaceStore
}

func (brokenStore) FindByID(context.Context, string) (*places.Record, error) {
	return nil, errors.New("connection reset")
}

func (brokenStore) FindNear(context.Context, places.Point, float64, string) ([]places.Record, error) {
	return nil, errors.New("connection reset")
}

func TestStoreReadErrorsPropagate(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	src := sourcemocks.NewMockPlaceSource(ctrl)
	svc := New(cache.NewMemoryCache(), brokenStore{}, src)

	_, err := svc.SearchNearby(context.Background(), 41, 29, 1000, "cafe")
	var se *places.StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "find near", se.Op)

	_, err = svc.GetDetails(context.Background(), "x")
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "find by id", se.Op)
}

func TestSearchTextAlwaysRemote(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	src := sourcemocks.NewMockPlaceSource(ctrl)
	st := newStore(t, stored)

	remote := &places.SearchTextResponse{Places: []places.TextSearchPlace{
		{ID: "local-1", DisplayName: &places.DisplayName{Text: "Local Cafe Renamed"}, FormattedAddress: "1 Local St"},
		{ID: "t2", DisplayName: &places.DisplayName{Text: "Two"}},
	}}
	src.EXPECT().SearchText(gomock.Any(), "Local Cafe", "en", 5, nil).Return(remote, nil)

	svc := New(cache.NewMemoryCache(), st, src)
	resp, err := svc.SearchText(context.Background(), "Local Cafe", "en", 5, nil)
	require.NoError(t, err)
	assert.Equal(t, remote, resp)

	// persisted before returning, no Wait needed
	rec, err := st.FindByID(context.Background(), "local-1")
	require.NoError(t, err)
	assert.Equal(t, "Local Cafe Renamed", rec.Name)
	assert.Empty(t, rec.Type)

	t2, err := st.FindByID(context.Background(), "t2")
	require.NoError(t, err)
	assert.Equal(t, places.NoAddress, t2.Address)
}

func TestSearchTextCacheKeyDiscrimination(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	src := sourcemocks.NewMockPlaceSource(ctrl)
	src.EXPECT().SearchText(gomock.Any(), gomock.Any(), "en", gomock.Any(), gomock.Any()).
		Return(&places.SearchTextResponse{Places: []places.TextSearchPlace{{ID: "en"}}}, nil).Times(1)
	src.EXPECT().SearchText(gomock.Any(), gomock.Any(), "tr", gomock.Any(), gomock.Any()).
		Return(&places.SearchTextResponse{Places: []places.TextSearchPlace{{ID: "tr"}}}, nil).Times(1)

	svc := New(cache.NewMemoryCache(), newStore(t), src)
	ctx := context.Background()

	en, err := svc.SearchText(ctx, "Pizza", "en", 20, nil)
	require.NoError(t, err)
	tr, err := svc.SearchText(ctx, "Pizza", "tr", 20, nil)
	require.NoError(t, err)
	assert.Equal(t, "en", en.Places[0].ID)
	assert.Equal(t, "tr", tr.Places[0].ID)

	// normalized query shares the entry
	again, err := svc.SearchText(ctx, "  pizza ", "en", 20, nil)
	require.NoError(t, err)
	assert.Equal(t, "en", again.Places[0].ID)
}

func TestGetDetails(t *testing.T) {
	t.Parallel()

	openNow := true
	remote := &places.PlaceDetails{
		ID:               "remote-1",
		DisplayName:      &places.DisplayName{Text: "Remote"},
		FormattedAddress: "2 Remote Rd",
		OpeningHours:     &places.OpeningHours{OpenNow: &openNow},
	}

	t.Run("store hit", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		c := cachemocks.NewMockCache(ctrl)
		c.EXPECT().Get(gomock.Any(), "details:local-1").Return(nil, false, nil)
		c.EXPECT().Set(gomock.Any(), "details:local-1", gomock.Any(), DefaultDetailsTTL).Return(nil)

		svc := New(c, newStore(t, stored), sourcemocks.NewMockPlaceSource(ctrl))
		d, err := svc.GetDetails(context.Background(), "local-1")
		require.NoError(t, err)
		assert.Equal(t, "1 Local St", d.FormattedAddress)
		assert.Equal(t, DefaultLanguage, d.DisplayName.LanguageCode)
		assert.InDelta(t, 41.0001, d.Location.Latitude, 1e-9)
	})

	t.Run("source fallback persists", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		src := sourcemocks.NewMockPlaceSource(ctrl)
		src.EXPECT().GetDetails(gomock.Any(), "remote-1").Return(remote, nil)
		st := newStore(t)

		svc := New(cache.NewMemoryCache(), st, src, WithDetailsTTL(DefaultDetailsTTL))
		d, err := svc.GetDetails(context.Background(), "remote-1")
		require.NoError(t, err)
		assert.Equal(t, remote, d)

		rec, err := st.FindByID(context.Background(), "remote-1")
		require.NoError(t, err)
		assert.Equal(t, "Remote", rec.Name)
		require.NotNil(t, rec.OpeningHours)
		assert.True(t, *rec.OpeningHours.OpenNow)

		// cached now
		again, err := svc.GetDetails(context.Background(), "remote-1")
		require.NoError(t, err)
		assert.Equal(t, "Remote", again.DisplayName.Text)
	})

	t.Run("source error", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		src := sourcemocks.NewMockPlaceSource(ctrl)
		src.EXPECT().GetDetails(gomock.Any(), "nope").
			Return(nil, &places.ExternalSourceError{Service: "Google Places API", StatusCode: 404, Cause: errors.New("not found")})

		svc := New(cache.NewMemoryCache(), newStore(t), src)
		_, err := svc.GetDetails(context.Background(), "nope")
		var target *places.ExternalSourceError
		require.True(t, errors.As(err, &target))
		assert.Equal(t, 404, target.StatusCode)
	})
}

func TestLanguageFromContext(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultLanguage, LanguageFromContext(context.Background()))
	assert.Equal(t, DefaultLanguage, LanguageFromContext(WithLanguage(context.Background(), "")))
	assert.Equal(t, "de", LanguageFromContext(WithLanguage(context.Background(), "de")))
}
