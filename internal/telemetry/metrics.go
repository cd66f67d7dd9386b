package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// ResolverMetricsMeterName is the name used for the resolution metrics meter
	ResolverMetricsMeterName = "github.com/rovits/poi-sync-service/resolver"

	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/rovits/poi-sync-service/sync"

	// RateLimitMetricsMeterName is the name used for the rate limit metrics meter
	RateLimitMetricsMeterName = "github.com/rovits/poi-sync-service/ratelimit"
)

// Resolution tiers reported by ResolverMetrics
const (
	TierCache    = "cache"
	TierStore    = "store"
	TierExternal = "external"
)

// ResolverMetrics counts which tier answered each resolution
type ResolverMetrics struct {
	resolutions metric.Int64Counter
}

// NewResolverMetrics creates a new ResolverMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewResolverMetrics(provider metric.MeterProvider) (*ResolverMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(ResolverMetricsMeterName)

	resolutions, err := meter.Int64Counter(
		"poisync_resolution_total",
		metric.WithDescription("Resolutions by operation and answering tier"),
		metric.WithUnit("{resolution}"),
	)
	if err != nil {
		return nil, err
	}

	return &ResolverMetrics{resolutions: resolutions}, nil
}

// RecordResolution records that operation was answered by tier
func (m *ResolverMetrics) RecordResolution(ctx context.Context, operation, tier string) {
	if m == nil || m.resolutions == nil {
		return
	}

	m.resolutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("tier", tier),
	))
}

// SyncMetrics holds the OpenTelemetry instruments for sync job metrics
type SyncMetrics struct {
	syncDuration metric.Float64Histogram
	recordsSaved metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	syncDuration, err := meter.Float64Histogram(
		"poisync_sync_duration_seconds",
		metric.WithDescription("Duration of sync jobs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	recordsSaved, err := meter.Int64Counter(
		"poisync_sync_records_saved_total",
		metric.WithDescription("Records upserted by sync jobs"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		syncDuration: syncDuration,
		recordsSaved: recordsSaved,
	}, nil
}

// RecordSync records the outcome of one sync job
func (m *SyncMetrics) RecordSync(ctx context.Context, placeType string, duration time.Duration, saved int, success bool) {
	if m == nil || m.syncDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("type", placeType),
		attribute.Bool("success", success),
	)

	m.syncDuration.Record(ctx, duration.Seconds(), attrs)
	if saved > 0 {
		m.recordsSaved.Add(ctx, int64(saved), metric.WithAttributes(attribute.String("type", placeType)))
	}
}

// RateLimitMetrics counts rejected requests
type RateLimitMetrics struct {
	rejections metric.Int64Counter
}

// NewRateLimitMetrics creates a new RateLimitMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewRateLimitMetrics(provider metric.MeterProvider) (*RateLimitMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(RateLimitMetricsMeterName)

	rejections, err := meter.Int64Counter(
		"poisync_ratelimit_rejections_total",
		metric.WithDescription("Requests rejected by rate limiting or lockout"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &RateLimitMetrics{rejections: rejections}, nil
}

// RecordRejection records a rejected request for the given subject scope
func (m *RateLimitMetrics) RecordRejection(ctx context.Context, scope string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.Add(ctx, 1, metric.WithAttributes(attribute.String("scope", scope)))
}
