// Package otel provides OpenTelemetry span helpers shared by the resolver,
// the sync pipeline, the stores and the upstream source client.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on spans across the service
const (
	AttrPlaceID     = attribute.Key("place.id")
	AttrPlaceType   = attribute.Key("place.type")
	AttrCacheKey    = attribute.Key("cache.key")
	AttrTier        = attribute.Key("resolution.tier")
	AttrRadius      = attribute.Key("search.radius_m")
	AttrResultCount = attribute.Key("result.count")
	AttrJobID       = attribute.Key("sync.job_id")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns the
// span already in ctx, which is a no-op span when tracing is disabled.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks the span failed. The status
// description stays generic so queries and upstream URLs do not leak into
// status fields; details remain in the span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
