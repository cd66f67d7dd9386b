// Package database provides a PostgreSQL/PostGIS implementation of store.PlaceStore.
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/rovits/poi-sync-service/internal/db/sqlc"
	"github.com/rovits/poi-sync-service/internal/otel"
	"github.com/rovits/poi-sync-service/internal/places"
	"github.com/rovits/poi-sync-service/internal/store"
)

// options holds configuration options for the database store
type options struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	now    func() time.Time
}

// Option is a functional option for configuring the database store
type Option func(*options) error

// WithConnectionPool sets the pgx pool. The caller is responsible for
// closing the pool when it is done.
func WithConnectionPool(pool *pgxpool.Pool) Option {
	return func(o *options) error {
		if pool == nil {
			return fmt.Errorf("pgx pool is required")
		}
		o.pool = pool
		return nil
	}
}

// WithTracer sets the OpenTelemetry tracer for the database store.
// If not set, tracing will be disabled (no-op).
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

// WithClock overrides the time source used for UpdatedAt
func WithClock(now func() time.Time) Option {
	return func(o *options) error {
		o.now = now
		return nil
	}
}

// dbStore implements store.PlaceStore on PostgreSQL with PostGIS
type dbStore struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	now    func() time.Time
}

var _ store.PlaceStore = (*dbStore)(nil)

// New creates a new database-backed place store with the given options
func New(opts ...Option) (store.PlaceStore, error) {
	o := &options{now: time.Now}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.pool == nil {
		return nil, fmt.Errorf("pgx pool is required")
	}

	return &dbStore{pool: o.pool, tracer: o.tracer, now: o.now}, nil
}

// startSpan starts a span tagged with db.system=postgresql
func (s *dbStore) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{semconv.DBSystemPostgreSQL}, attrs...)
	return otel.StartSpan(ctx, s.tracer, name, trace.WithAttributes(attrs...))
}

// Ping checks the pool can reach the database
func (s *dbStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

func toRecord(
	id, name, address string,
	placeType pgtype.Text,
	lat, lng pgtype.Float8,
	openingHours []byte,
	updatedAt pgtype.Timestamptz,
) (places.Record, error) {
	rec := places.Record{
		ID:        id,
		Name:      name,
		Address:   address,
		Type:      placeType.String,
		UpdatedAt: updatedAt.Time.UTC(),
	}
	if lat.Valid && lng.Valid {
		rec.Location = &places.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	if len(openingHours) > 0 {
		var oh places.OpeningHours
		if err := json.Unmarshal(openingHours, &oh); err != nil {
			return places.Record{}, fmt.Errorf("failed to decode opening hours of %s: %w", id, err)
		}
		rec.OpeningHours = &oh
	}
	return rec, nil
}

// FindByID returns the record with the given id
func (s *dbStore) FindByID(ctx context.Context, id string) (*places.Record, error) {
	ctx, span := s.startSpan(ctx, "dbStore.FindByID", otel.AttrPlaceID.String(id))
	defer span.End()

	row, err := sqlc.New(s.pool).GetPlace(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, places.ErrNotFound
	}
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to get place %s: %w", id, err)
	}

	rec, err := toRecord(row.ID, row.Name, row.Address, row.PlaceType, row.Lat, row.Lng, row.OpeningHours, row.UpdatedAt)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	return &rec, nil
}

// FindNear uses ST_DWithin on the geography column, which is served by the GIST index
func (s *dbStore) FindNear(
	ctx context.Context, center places.Point, distanceKm float64, placeType string,
) ([]places.Record, error) {
	ctx, span := s.startSpan(ctx, "dbStore.FindNear",
		otel.AttrPlaceType.String(placeType),
		attribute.Float64("distance_km", distanceKm),
	)
	defer span.End()

	rows, err := sqlc.New(s.pool).ListPlacesWithinDistance(ctx, sqlc.ListPlacesWithinDistanceParams{
		Lng:       center.Lng,
		Lat:       center.Lat,
		Meters:    distanceKm * 1000,
		PlaceType: placeType,
	})
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list nearby places: %w", err)
	}

	out := make([]places.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := toRecord(row.ID, row.Name, row.Address, row.PlaceType, row.Lat, row.Lng, row.OpeningHours, row.UpdatedAt)
		if err != nil {
			otel.RecordError(span, err)
			return nil, err
		}
		out = append(out, rec)
	}

	span.SetAttributes(otel.AttrResultCount.Int(len(out)))
	return out, nil
}

// FindByText runs a full-text query over the weighted name/address vector,
// ranked by ts_rank
func (s *dbStore) FindByText(ctx context.Context, query string) ([]places.Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []places.Record{}, nil
	}

	ctx, span := s.startSpan(ctx, "dbStore.FindByText")
	defer span.End()

	rows, err := sqlc.New(s.pool).SearchPlacesByText(ctx, query)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to search places: %w", err)
	}

	out := make([]places.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := toRecord(row.ID, row.Name, row.Address, row.PlaceType, row.Lat, row.Lng, row.OpeningHours, row.UpdatedAt)
		if err != nil {
			otel.RecordError(span, err)
			return nil, err
		}
		out = append(out, rec)
	}

	span.SetAttributes(otel.AttrResultCount.Int(len(out)))
	return out, nil
}

func upsertParams(rec places.Record, now time.Time) (sqlc.UpsertPlaceParams, error) {
	if rec.ID == "" {
		return sqlc.UpsertPlaceParams{}, fmt.Errorf("record id is required")
	}

	params := sqlc.UpsertPlaceParams{
		ID:        rec.ID,
		Name:      rec.Name,
		Address:   rec.Address,
		PlaceType: pgtype.Text{String: rec.Type, Valid: rec.Type != ""},
		UpdatedAt: pgtype.Timestamptz{Time: now, Valid: true},
	}
	if rec.Location != nil {
		params.Lat = pgtype.Float8{Float64: rec.Location.Lat, Valid: true}
		params.Lng = pgtype.Float8{Float64: rec.Location.Lng, Valid: true}
	}
	if rec.OpeningHours != nil {
		data, err := json.Marshal(rec.OpeningHours)
		if err != nil {
			return sqlc.UpsertPlaceParams{}, fmt.Errorf("failed to encode opening hours of %s: %w", rec.ID, err)
		}
		params.OpeningHours = data
	}
	return params, nil
}

// Upsert inserts or replaces rec
func (s *dbStore) Upsert(ctx context.Context, rec places.Record) error {
	ctx, span := s.startSpan(ctx, "dbStore.Upsert", otel.AttrPlaceID.String(rec.ID))
	defer span.End()

	params, err := upsertParams(rec, s.now())
	if err != nil {
		otel.RecordError(span, err)
		return err
	}

	if err := sqlc.New(s.pool).UpsertPlace(ctx, params); err != nil {
		otel.RecordError(span, err)
		return fmt.Errorf("failed to upsert place %s: %w", rec.ID, err)
	}
	return nil
}

// UpsertMany writes all records in one transaction
func (s *dbStore) UpsertMany(ctx context.Context, recs []places.Record) error {
	if len(recs) == 0 {
		return nil
	}

	ctx, span := s.startSpan(ctx, "dbStore.UpsertMany", otel.AttrResultCount.Int(len(recs)))
	defer span.End()

	now := s.now()
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		querier := sqlc.New(tx)
		for _, rec := range recs {
			params, err := upsertParams(rec, now)
			if err != nil {
				return err
			}
			if err := querier.UpsertPlace(ctx, params); err != nil {
				return fmt.Errorf("failed to upsert place %s: %w", rec.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		otel.RecordError(span, err)
		return err
	}
	return nil
}
