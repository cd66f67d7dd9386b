package google_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovits/poi-sync-service/internal/places"
	"github.com/rovits/poi-sync-service/internal/sources/google"
)

func newTestServer(handler http.Handler) *httptest.Server {
	server := httptest.NewServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	return server
}

func newClient(url string, retries int) *google.Client {
	return google.New("test-key",
		google.WithEndpoint(url),
		google.WithMaxRetries(retries),
		google.WithRetryInterval(time.Millisecond),
	)
}

func TestSearchNearby(t *testing.T) {
	t.Parallel()

	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/places:searchNearby", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Equal(t, "places.id,places.displayName,places.location", r.Header.Get("X-Goog-FieldMask"))

		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, []any{"cafe"}, body["includedTypes"])
		circle := body["locationRestriction"].(map[string]any)["circle"].(map[string]any)
		assert.InDelta(t, 1500.0, circle["radius"], 0.001)

		_, _ = w.Write([]byte(`{"places":[
			{"id":"a","displayName":{"text":"Alpha"},"location":{"latitude":41.1,"longitude":29.1}},
			{"id":"b"}
		]}`))
	}))
	defer server.Close()

	resp, err := newClient(server.URL, 0).SearchNearby(context.Background(), 41.0, 29.0, 1500, "cafe")
	require.NoError(t, err)
	require.Len(t, resp.Places, 2)
	assert.Equal(t, "a", resp.Places[0].ID)
	assert.Equal(t, "Alpha", resp.Places[0].DisplayName.Text)
	assert.InDelta(t, 41.1, resp.Places[0].Location.Latitude, 1e-9)
	assert.Nil(t, resp.Places[1].DisplayName)
}

func TestSearchNearbyEmptyBody(t *testing.T) {
	t.Parallel()

	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	resp, err := newClient(server.URL, 0).SearchNearby(context.Background(), 1, 2, 100, "bar")
	require.NoError(t, err)
	assert.Empty(t, resp.Places)
}

func TestSearchText(t *testing.T) {
	t.Parallel()

	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/places:searchText", r.URL.Path)
		assert.Equal(t,
			"places.id,places.displayName,places.formattedAddress,places.location",
			r.Header.Get("X-Goog-FieldMask"))

		raw, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{
			"textQuery":"pizza",
			"languageCode":"tr",
			"maxResultCount":5,
			"locationBias":{"circle":{"center":{"latitude":1,"longitude":2},"radius":300}}
		}`, string(raw))

		_, _ = w.Write([]byte(`{"places":[{"id":"p1","displayName":{"text":"Pizza"},"formattedAddress":"Main St"}]}`))
	}))
	defer server.Close()

	bias := &places.LocationBias{Circle: places.Circle{Center: places.LatLng{Latitude: 1, Longitude: 2}, Radius: 300}}
	resp, err := newClient(server.URL, 0).SearchText(context.Background(), "pizza", "tr", 5, bias)
	require.NoError(t, err)
	require.Len(t, resp.Places, 1)
	assert.Equal(t, "Main St", resp.Places[0].FormattedAddress)
}

func TestGetDetails(t *testing.T) {
	t.Parallel()

	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/places/abc", r.URL.Path)
		assert.Equal(t, "id,displayName.text,formattedAddress,regularOpeningHours,location", r.Header.Get("X-Goog-FieldMask"))
		_, _ = w.Write([]byte(`{
			"id":"abc",
			"displayName":{"text":"Cafe"},
			"formattedAddress":"1 Road",
			"regularOpeningHours":{"openNow":true,"weekdayDescriptions":["Monday: 9-17"]},
			"location":{"latitude":1.5,"longitude":2.5}
		}`))
	}))
	defer server.Close()

	d, err := newClient(server.URL, 0).GetDetails(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "Cafe", d.DisplayName.Text)
	require.NotNil(t, d.OpeningHours)
	require.NotNil(t, d.OpeningHours.OpenNow)
	assert.True(t, *d.OpeningHours.OpenNow)
	assert.Equal(t, []string{"Monday: 9-17"}, d.OpeningHours.WeekdayDescriptions)
}

func TestRetries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		statuses     []int
		retries      int
		wantErr      bool
		wantStatus   int
		wantAttempts int32
	}{
		{
			name:         "recovers after transient failures",
			statuses:     []int{http.StatusServiceUnavailable, http.StatusTooManyRequests, http.StatusOK},
			retries:      3,
			wantAttempts: 3,
		},
		{
			name:         "gives up after max retries",
			statuses:     []int{http.StatusBadGateway, http.StatusBadGateway, http.StatusBadGateway},
			retries:      2,
			wantErr:      true,
			wantStatus:   http.StatusBadGateway,
			wantAttempts: 3,
		},
		{
			name:         "does not retry client errors",
			statuses:     []int{http.StatusForbidden, http.StatusOK},
			retries:      3,
			wantErr:      true,
			wantStatus:   http.StatusForbidden,
			wantAttempts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var attempts atomic.Int32
			server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				n := attempts.Add(1)
				status := tt.statuses[min(int(n)-1, len(tt.statuses)-1)]
				if status != http.StatusOK {
					w.WriteHeader(status)
					_, _ = w.Write([]byte(`{"error":{"code":1,"message":"upstream says no"}}`))
					return
				}
				_, _ = w.Write([]byte(`{"id":"x"}`))
			}))
			defer server.Close()

			d, err := newClient(server.URL, tt.retries).GetDetails(context.Background(), "x")
			assert.Equal(t, tt.wantAttempts, attempts.Load())
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, "x", d.ID)
				return
			}

			require.Error(t, err)
			var srcErr *places.ExternalSourceError
			require.True(t, errors.As(err, &srcErr))
			assert.Equal(t, google.ServiceName, srcErr.Service)
			assert.Equal(t, tt.wantStatus, srcErr.StatusCode)
			assert.Contains(t, err.Error(), "upstream says no")
		})
	}
}

func TestMalformedResponse(t *testing.T) {
	t.Parallel()

	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	_, err := newClient(server.URL, 0).GetDetails(context.Background(), "x")
	var srcErr *places.ExternalSourceError
	require.True(t, errors.As(err, &srcErr))
	assert.Equal(t, 0, srcErr.StatusCode)
}
