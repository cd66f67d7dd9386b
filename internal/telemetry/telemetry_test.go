package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/rovits/poi-sync-service/internal/logging"
	"github.com/rovits/poi-sync-service/internal/versions"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{name: "nil config", cfg: nil},
		{name: "disabled ignores invalid values", cfg: &Config{Tracing: &TracingConfig{Enabled: true, Sampling: 5}}},
		{name: "valid", cfg: &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: 0.5}}},
		{name: "sampling out of range", cfg: &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: 1.5}}, wantErr: true},
		{
			name:    "invalid metrics interval",
			cfg:     &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true, Interval: "-5s"}},
			wantErr: true,
		},
		{
			name:    "no metrics exporter",
			cfg:     &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true, DisableOTLP: true}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	assert.Equal(t, DefaultServiceName, cfg.GetServiceName())
	assert.Equal(t, versions.GetVersionInfo().Version, cfg.GetServiceVersion())
	assert.Equal(t, DefaultEndpoint, cfg.GetEndpoint())
	assert.Equal(t, DefaultSampling, (&TracingConfig{}).GetSampling())
	assert.Equal(t, DefaultMetricsInterval, (&MetricsConfig{}).GetInterval())
	assert.Equal(t, 15*time.Second, (&MetricsConfig{Interval: "15s"}).GetInterval())
}

func TestNewDisabledTelemetry(t *testing.T) {
	t.Parallel()

	tel, err := New(context.Background())
	require.NoError(t, err)

	assert.IsType(t, tracenoop.NewTracerProvider(), tel.TracerProvider())
	assert.IsType(t, metricnoop.NewMeterProvider(), tel.MeterProvider())
	assert.Nil(t, tel.MetricsHandler())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

//nolint:paralleltest // Registers global meter provider
func TestPrometheusOnlyTelemetry(t *testing.T) {
	tel, err := New(context.Background(), WithTelemetryConfig(&Config{
		Enabled: true,
		Metrics: &MetricsConfig{Enabled: true, Prometheus: true, DisableOTLP: true},
	}))
	require.NoError(t, err)
	defer func() { _ = tel.Shutdown(context.Background()) }()

	metrics, err := NewSyncMetrics(tel.MeterProvider())
	require.NoError(t, err)
	metrics.RecordSync(context.Background(), "cafe", 2*time.Second, 3, true)

	handler := tel.MetricsHandler()
	require.NotNil(t, handler)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "poisync_sync_records_saved")
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestNilMetricsAreNoOps(t *testing.T) {
	t.Parallel()

	for _, fn := range []func(){
		func() { (*ResolverMetrics)(nil).RecordResolution(context.Background(), "details", TierCache) },
		func() { (*SyncMetrics)(nil).RecordSync(context.Background(), "cafe", time.Second, 1, true) },
		func() { (*RateLimitMetrics)(nil).RecordRejection(context.Background(), "ip") },
	} {
		assert.NotPanics(t, fn)
	}

	m, err := NewResolverMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestMetricsRecording(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	resolver, err := NewResolverMetrics(mp)
	require.NoError(t, err)
	syncMetrics, err := NewSyncMetrics(mp)
	require.NoError(t, err)
	limits, err := NewRateLimitMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	resolver.RecordResolution(ctx, "nearby", TierStore)
	resolver.RecordResolution(ctx, "nearby", TierStore)
	syncMetrics.RecordSync(ctx, "cafe", time.Second, 4, true)
	limits.RecordRejection(ctx, "user")

	got := collect(t, reader)

	resolutions, ok := got["poisync_resolution_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, resolutions.DataPoints, 1)
	assert.Equal(t, int64(2), resolutions.DataPoints[0].Value)

	saved, ok := got["poisync_sync_records_saved_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(4), saved.DataPoints[0].Value)

	assert.Contains(t, got, "poisync_sync_duration_seconds")
	assert.Contains(t, got, "poisync_ratelimit_rejections_total")
}

func TestHTTPInstrumentation(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	instrumentation, err := NewHTTPInstrumentation(tp, mp)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(instrumentation.Middleware)
	r.Get("/api/places/details/{placeId}", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(logging.CorrelationIDHeader, "corr-1")
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/places/details/abc", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)

	got := collect(t, reader)
	total, ok := got["poisync_http_requests_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, total.DataPoints, 1)

	route, ok := total.DataPoints[0].Attributes.Value("route")
	require.True(t, ok)
	assert.Equal(t, "/api/places/details/{placeId}", route.AsString())
	status, _ := total.DataPoints[0].Attributes.Value("status_code")
	assert.Equal(t, "418", status.AsString())

	inFlight, ok := got["poisync_http_requests_in_flight"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, inFlight.DataPoints, 1)
	assert.Equal(t, int64(0), inFlight.DataPoints[0].Value)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /api/places/details/{placeId}", spans[0].Name())
	var correlation string
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "correlation_id" {
			correlation = kv.Value.AsString()
		}
	}
	assert.Equal(t, "corr-1", correlation)
}

func TestNilInstrumentationPassesThrough(t *testing.T) {
	t.Parallel()

	instrumentation, err := NewHTTPInstrumentation(nil, nil)
	require.NoError(t, err)
	require.Nil(t, instrumentation)

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	rr := httptest.NewRecorder()
	instrumentation.Middleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestMetricsOnlyInstrumentation(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	instrumentation, err := NewHTTPInstrumentation(nil, mp)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	instrumentation.Middleware(http.NotFoundHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	total, ok := collect(t, reader)["poisync_http_requests_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	route, _ := total.DataPoints[0].Attributes.Value("route")
	assert.Equal(t, unknownRoute, route.AsString())
}
