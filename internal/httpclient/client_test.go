package httpclient_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovits/poi-sync-service/internal/httpclient"
)

// newTestServer creates a new test server with keep-alives disabled so
// closing it does not affect other parallel tests sharing the transport.
func newTestServer(handler http.Handler) *httptest.Server {
	server := httptest.NewServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	return server
}

func TestDefaultClientDo(t *testing.T) {
	t.Parallel()

	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Goog-Api-Key"))
		assert.Contains(t, r.Header.Get("User-Agent"), "poi-sync-api/")

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"q":1}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := httpclient.NewDefaultClient(0)
	data, err := client.Do(context.Background(), httpclient.Request{
		Method:  http.MethodPost,
		URL:     server.URL,
		Headers: map[string]string{"X-Goog-Api-Key": "secret"},
		Body:    []byte(`{"q":1}`),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
}

func TestDefaultClientDoErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		status        int
		wantRetryable bool
	}{
		{name: "not found", status: http.StatusNotFound},
		{name: "bad request", status: http.StatusBadRequest},
		{name: "rate limited", status: http.StatusTooManyRequests, wantRetryable: true},
		{name: "unavailable", status: http.StatusServiceUnavailable, wantRetryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Retry-After", "2")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
			}))
			defer server.Close()

			_, err := httpclient.NewDefaultClient(0).Do(context.Background(), httpclient.Request{URL: server.URL})
			require.Error(t, err)

			var httpErr *httpclient.HTTPError
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, tt.wantRetryable, httpErr.Retryable())
			assert.Equal(t, "2", httpErr.RetryAfter)
			assert.JSONEq(t, `{"error":{"message":"boom"}}`, string(httpErr.Body))
		})
	}
}

func TestDefaultClientDoCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := httpclient.NewDefaultClient(0).Do(ctx, httpclient.Request{URL: "http://127.0.0.1:1"})
	require.Error(t, err)
}
