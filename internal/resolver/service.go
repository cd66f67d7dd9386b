package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/rovits/poi-sync-service/internal/cache"
	"github.com/rovits/poi-sync-service/internal/otel"
	"github.com/rovits/poi-sync-service/internal/places"
	"github.com/rovits/poi-sync-service/internal/sources"
	"github.com/rovits/poi-sync-service/internal/store"
	"github.com/rovits/poi-sync-service/internal/telemetry"
)

const (
	// DefaultSearchTTL is the cache lifetime of nearby and text search results
	DefaultSearchTTL = 10 * time.Minute

	// DefaultDetailsTTL is the cache lifetime of details
	DefaultDetailsTTL = 24 * time.Hour

	// DefaultWriteTimeout bounds a detached store write
	DefaultWriteTimeout = 30 * time.Second
)

// Operation names reported in metrics
const (
	opNearby  = "nearby"
	opText    = "text"
	opDetails = "details"
)

// Service resolves place queries through cache, store and source
type Service struct {
	cache  cache.Cache
	store  store.PlaceStore
	source sources.PlaceSource

	searchTTL    time.Duration
	detailsTTL   time.Duration
	writeTimeout time.Duration

	metrics *telemetry.ResolverMetrics
	tracer  trace.Tracer

	writes sync.WaitGroup
}

// Option configures a Service
type Option func(*Service)

// WithSearchTTL sets the cache lifetime of search results
func WithSearchTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.searchTTL = d
		}
	}
}

// WithDetailsTTL sets the cache lifetime of details
func WithDetailsTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.detailsTTL = d
		}
	}
}

// WithWriteTimeout bounds detached store writes
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// WithMetrics sets the resolution metrics
func WithMetrics(m *telemetry.ResolverMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer sets the tracer used for resolution spans
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New creates a Service over the three tiers
func New(c cache.Cache, st store.PlaceStore, src sources.PlaceSource, opts ...Option) *Service {
	s := &Service{
		cache:        c,
		store:        st,
		source:       src,
		searchTTL:    DefaultSearchTTL,
		detailsTTL:   DefaultDetailsTTL,
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SearchNearby returns the places of placeType within radius meters of
// (lat, lng)
func (s *Service) SearchNearby(
	ctx context.Context, lat, lng, radius float64, placeType string,
) (*places.SearchNearbyResponse, error) {
	key := cache.NearbyKey(lat, lng, radius, placeType)
	ctx, span := otel.StartSpan(ctx, s.tracer, "resolver.SearchNearby",
		trace.WithAttributes(
			otel.AttrCacheKey.String(key),
			otel.AttrRadius.Float64(radius),
			otel.AttrPlaceType.String(placeType),
		))
	defer span.End()

	var cached places.SearchNearbyResponse
	if s.getCached(ctx, key, &cached) {
		s.answered(ctx, span, opNearby, telemetry.TierCache)
		return &cached, nil
	}

	recs, err := s.store.FindNear(ctx, places.Point{Lat: lat, Lng: lng}, radius/1000, placeType)
	if err != nil {
		err = storeError("find near", err)
		otel.RecordError(span, err)
		return nil, err
	}

	if len(recs) > 0 {
		lang := LanguageFromContext(ctx)
		resp := &places.SearchNearbyResponse{Places: make([]places.NearbyPlace, 0, len(recs))}
		for _, rec := range recs {
			resp.Places = append(resp.Places, rec.ToNearbyPlace(lang))
		}
		slog.DebugContext(ctx, "Nearby search answered from store", "count", len(recs))
		s.setCached(ctx, key, resp, s.searchTTL)
		s.answered(ctx, span, opNearby, telemetry.TierStore)
		return resp, nil
	}

	resp, err := s.source.SearchNearby(ctx, lat, lng, radius, placeType)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	if resp == nil {
		resp = &places.SearchNearbyResponse{}
	}

	if len(resp.Places) > 0 {
		stubs := make([]places.Record, 0, len(resp.Places))
		for _, p := range resp.Places {
			stubs = append(stubs, p.ToRecord(placeType))
		}
		s.detach(ctx, "persist nearby results", func(ctx context.Context) error {
			return s.store.UpsertMany(ctx, stubs)
		})
	}

	s.setCached(ctx, key, resp, s.searchTTL)
	s.answered(ctx, span, opNearby, telemetry.TierExternal)
	return resp, nil
}

// SearchText runs a free text query against the source. Hits are persisted
// before the response is returned.
func (s *Service) SearchText(
	ctx context.Context, query, lang string, maxResults int, bias *places.LocationBias,
) (*places.SearchTextResponse, error) {
	key := cache.TextKey(query, lang)
	ctx, span := otel.StartSpan(ctx, s.tracer, "resolver.SearchText",
		trace.WithAttributes(otel.AttrCacheKey.String(key)))
	defer span.End()

	var cached places.SearchTextResponse
	if s.getCached(ctx, key, &cached) {
		s.answered(ctx, span, opText, telemetry.TierCache)
		return &cached, nil
	}

	resp, err := s.source.SearchText(ctx, query, lang, maxResults, bias)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	if resp == nil {
		resp = &places.SearchTextResponse{}
	}

	if len(resp.Places) > 0 {
		recs := make([]places.Record, 0, len(resp.Places))
		for _, p := range resp.Places {
			recs = append(recs, p.ToRecord())
		}
		if err := s.store.UpsertMany(ctx, recs); err != nil {
			slog.WarnContext(ctx, "Failed to save text search results", "count", len(recs), "error", err)
		}
	}

	s.setCached(ctx, key, resp, s.searchTTL)
	s.answered(ctx, span, opText, telemetry.TierExternal)
	return resp, nil
}

// GetDetails returns the details of a single place
func (s *Service) GetDetails(ctx context.Context, placeID string) (*places.PlaceDetails, error) {
	key := cache.DetailsKey(placeID)
	ctx, span := otel.StartSpan(ctx, s.tracer, "resolver.GetDetails",
		trace.WithAttributes(
			otel.AttrCacheKey.String(key),
			otel.AttrPlaceID.String(placeID),
		))
	defer span.End()

	var cached places.PlaceDetails
	if s.getCached(ctx, key, &cached) {
		s.answered(ctx, span, opDetails, telemetry.TierCache)
		return &cached, nil
	}

	rec, err := s.store.FindByID(ctx, placeID)
	switch {
	case err == nil:
		details := rec.ToDetails(LanguageFromContext(ctx))
		s.setCached(ctx, key, &details, s.detailsTTL)
		s.answered(ctx, span, opDetails, telemetry.TierStore)
		return &details, nil
	case !errors.Is(err, places.ErrNotFound):
		err = storeError("find by id", err)
		otel.RecordError(span, err)
		return nil, err
	}

	details, err := s.source.GetDetails(ctx, placeID)
	if err == nil && details == nil {
		err = &places.ExternalSourceError{Service: "place source", Cause: errors.New("empty details response")}
	}
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}

	if err := s.store.Upsert(ctx, details.ToRecord("")); err != nil {
		slog.WarnContext(ctx, "Failed to save place details", "place_id", placeID, "error", err)
	}

	s.setCached(ctx, key, details, s.detailsTTL)
	s.answered(ctx, span, opDetails, telemetry.TierExternal)
	return details, nil
}

// Wait blocks until all detached writes have finished
func (s *Service) Wait() {
	s.writes.Wait()
}

// detach runs fn on its own goroutine with a context that survives the
// caller but is bounded by the write timeout. Failures are logged.
func (s *Service) detach(ctx context.Context, what string, fn func(context.Context) error) {
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			slog.WarnContext(ctx, "Background write failed", "operation", what, "error", err)
		}
	}()
}

func (s *Service) getCached(ctx context.Context, key string, out any) bool {
	data, found, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "Cache read failed", "key", key, "error", err)
		return false
	}
	if !found {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		slog.WarnContext(ctx, "Discarding undecodable cache entry", "key", key, "error", err)
		return false
	}
	slog.DebugContext(ctx, "Cache hit", "key", key)
	return true
}

func (s *Service) setCached(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		slog.WarnContext(ctx, "Failed to encode cache entry", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		slog.WarnContext(ctx, "Cache write failed", "key", key, "error", err)
	}
}

func (s *Service) answered(ctx context.Context, span trace.Span, op, tier string) {
	span.SetAttributes(otel.AttrTier.String(tier))
	s.metrics.RecordResolution(ctx, op, tier)
}

// storeError wraps err as a StoreError unless the store already did
func storeError(op string, err error) error {
	var se *places.StoreError
	if errors.As(err, &se) {
		return err
	}
	return &places.StoreError{Op: op, Cause: err}
}
