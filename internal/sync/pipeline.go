package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rovits/poi-sync-service/internal/otel"
	"github.com/rovits/poi-sync-service/internal/places"
	"github.com/rovits/poi-sync-service/internal/sources"
	"github.com/rovits/poi-sync-service/internal/store"
)

// DefaultConcurrency bounds the in-flight detail lookups of one run
const DefaultConcurrency = 8

// ErrAllDetailsFailed is returned when a run found stubs but could not fetch
// the details of any of them
var ErrAllDetailsFailed = errors.New("all detail lookups failed")

// Request describes the area to synchronize
type Request struct {
	Lat          float64
	Lng          float64
	RadiusMeters float64
	Type         string
}

// Result summarizes a run
type Result struct {
	Stubs          int
	Fetched        int
	Saved          int
	DetailFailures int
	WriteFailures  int
	Duration       time.Duration

	// Records holds the records that were written
	Records []places.Record
}

//go:generate mockgen -destination=mocks/mock_runner.go -package=mocks -source=pipeline.go Runner

// Runner executes a synchronization run
type Runner interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// ValidateRequest checks an area before a job is created for it
func ValidateRequest(lat, lng, radius float64) error {
	return places.ValidateArea(lat, lng, radius)
}

// Pipeline fetches an area from a source and writes it to a store
type Pipeline struct {
	source      sources.PlaceSource
	store       store.PlaceStore
	concurrency int
	tracer      trace.Tracer
	now         func() time.Time
}

var _ Runner = (*Pipeline)(nil)

// Option configures a Pipeline
type Option func(*Pipeline)

// WithConcurrency bounds the in-flight detail lookups. Values below 1 keep
// the default.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithTracer sets the tracer used for run spans
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pipeline) {
		p.tracer = tracer
	}
}

// WithClock sets the time source used to measure runs
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// NewPipeline creates a pipeline reading from source and writing to st
func NewPipeline(source sources.PlaceSource, st store.PlaceStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:      source,
		store:       st,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run synchronizes one area. The returned Result is non-nil whenever the
// nearby search succeeded, including when the run fails with
// ErrAllDetailsFailed.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	start := p.now()
	ctx, span := otel.StartSpan(ctx, p.tracer, "sync.Pipeline.Run",
		trace.WithAttributes(
			otel.AttrPlaceType.String(req.Type),
			otel.AttrRadius.Float64(req.RadiusMeters),
			attribute.Float64("search.lat", req.Lat),
			attribute.Float64("search.lng", req.Lng),
		))
	defer span.End()

	slog.InfoContext(ctx, "Starting POI sync",
		"lat", req.Lat, "lng", req.Lng, "radius", req.RadiusMeters, "type", req.Type)

	nearby, err := p.source.SearchNearby(ctx, req.Lat, req.Lng, req.RadiusMeters, req.Type)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to search nearby places: %w", err)
	}

	result := &Result{}
	if nearby != nil {
		result.Stubs = len(nearby.Places)
	}
	if result.Stubs == 0 {
		slog.WarnContext(ctx, "No places found for area, nothing to sync")
		result.Duration = p.now().Sub(start)
		return result, nil
	}

	details, detailErrs := p.fetchDetails(ctx, nearby.Places)
	result.Fetched = len(details)
	result.DetailFailures = len(detailErrs)

	if len(details) == 0 {
		err := fmt.Errorf("%w: %w", ErrAllDetailsFailed, errors.Join(detailErrs...))
		slog.ErrorContext(ctx, "All detail lookups failed", "stubs", result.Stubs)
		otel.RecordError(span, err)
		result.Duration = p.now().Sub(start)
		return result, err
	}

	slog.InfoContext(ctx, "Fetched place details, writing to store",
		"fetched", result.Fetched, "failed", result.DetailFailures)

	for _, d := range details {
		rec := d.ToRecord(req.Type)
		if err := p.store.Upsert(ctx, rec); err != nil {
			result.WriteFailures++
			slog.ErrorContext(ctx, "Failed to save place", "place_id", rec.ID, "error", err)
			continue
		}
		result.Saved++
		result.Records = append(result.Records, rec)
	}

	result.Duration = p.now().Sub(start)
	span.SetAttributes(otel.AttrResultCount.Int(result.Saved))
	slog.InfoContext(ctx, "POI sync completed",
		"saved", result.Saved, "write_failures", result.WriteFailures, "duration", result.Duration)
	return result, nil
}

// fetchDetails looks up every stub with at most p.concurrency requests in
// flight. Successful details keep the order of their stubs.
func (p *Pipeline) fetchDetails(ctx context.Context, stubs []places.NearbyPlace) ([]places.PlaceDetails, []error) {
	found := make([]*places.PlaceDetails, len(stubs))
	errs := make([]error, len(stubs))

	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for i, stub := range stubs {
		g.Go(func() error {
			d, err := p.source.GetDetails(ctx, stub.ID)
			if err == nil && d == nil {
				err = errors.New("empty details response")
			}
			if err != nil {
				slog.WarnContext(ctx, "Failed to fetch place details", "place_id", stub.ID, "error", err)
				errs[i] = fmt.Errorf("place %s: %w", stub.ID, err)
				return nil
			}
			found[i] = d
			return nil
		})
	}
	_ = g.Wait()

	var (
		details []places.PlaceDetails
		failed  []error
	)
	for i := range stubs {
		if found[i] != nil {
			details = append(details, *found[i])
			continue
		}
		failed = append(failed, errs[i])
	}
	return details, failed
}
