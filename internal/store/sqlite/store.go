// Package sqlite provides an embedded store.PlaceStore on top of the pure Go
// SQLite driver. Proximity queries prefilter with a bounding box on the
// (lat, lng) index and compute exact great-circle distances in Go.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/rovits/poi-sync-service/internal/otel"
	"github.com/rovits/poi-sync-service/internal/places"
	"github.com/rovits/poi-sync-service/internal/store"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

//go:embed schema.sql
var schema string

const (
	selectColumns = `SELECT id, name, address, place_type, lat, lng, opening_hours, updated_at FROM places`

	// name hits weigh 2, address hits 1
	textQuery = selectColumns + ` WHERE name LIKE ?1 ESCAPE '\' OR address LIKE ?1 ESCAPE '\'
ORDER BY (CASE WHEN name LIKE ?1 ESCAPE '\' THEN 2 ELSE 0 END)
       + (CASE WHEN address LIKE ?1 ESCAPE '\' THEN 1 ELSE 0 END) DESC, name, id`

	upsertQuery = `INSERT INTO places (id, name, address, place_type, lat, lng, opening_hours, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    address = excluded.address,
    place_type = excluded.place_type,
    lat = excluded.lat,
    lng = excluded.lng,
    opening_hours = excluded.opening_hours,
    updated_at = excluded.updated_at`
)

type options struct {
	path   string
	now    func() time.Time
	tracer trace.Tracer
}

// Option configures the SQLite store
type Option func(*options) error

// WithPath sets the database file, MemoryPath for a private in-memory database
func WithPath(path string) Option {
	return func(o *options) error {
		if path == "" {
			return fmt.Errorf("sqlite path is required")
		}
		o.path = path
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

// WithTracer sets the OpenTelemetry tracer for store operations
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) error {
		o.tracer = tracer
		return nil
	}
}

// Store is a SQLite-backed PlaceStore
type Store struct {
	db     *sql.DB
	now    func() time.Time
	tracer trace.Tracer
}

var _ store.PlaceStore = (*Store)(nil)

// Open opens (creating if needed) the database and applies the schema
func Open(ctx context.Context, opts ...Option) (*Store, error) {
	o := &options{path: MemoryPath, now: time.Now}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	if o.path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(o.path), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", o.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	slog.InfoContext(ctx, "SQLite place store opened", "path", o.path)

	return &Store{db: db, now: o.now, tracer: o.tracer}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (places.Record, error) {
	var (
		rec          places.Record
		lat, lng     sql.NullFloat64
		openingHours sql.NullString
		updatedAt    int64
	)
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Address, &rec.Type, &lat, &lng, &openingHours, &updatedAt); err != nil {
		return places.Record{}, err
	}
	if lat.Valid && lng.Valid {
		rec.Location = &places.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	if openingHours.Valid && openingHours.String != "" {
		var oh places.OpeningHours
		if err := json.Unmarshal([]byte(openingHours.String), &oh); err != nil {
			return places.Record{}, fmt.Errorf("failed to decode opening hours of %s: %w", rec.ID, err)
		}
		rec.OpeningHours = &oh
	}
	rec.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return rec, nil
}

// FindByID returns the record with the given id
func (s *Store) FindByID(ctx context.Context, id string) (*places.Record, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "sqlite.FindByID",
		trace.WithAttributes(otel.AttrPlaceID.String(id)))
	defer span.End()

	rec, err := scanRecord(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, places.ErrNotFound
	}
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to get place %s: %w", id, err)
	}
	return &rec, nil
}

// FindNear returns records within distanceKm of center ordered by distance
func (s *Store) FindNear(
	ctx context.Context, center places.Point, distanceKm float64, placeType string,
) ([]places.Record, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "sqlite.FindNear",
		trace.WithAttributes(otel.AttrPlaceType.String(placeType), attribute.Float64("distance_km", distanceKm)))
	defer span.End()

	minLat, maxLat, minLng, maxLng := places.BoundingBox(center, distanceKm)
	lngFilter := `lng BETWEEN ? AND ?`
	if minLng > maxLng {
		lngFilter = `(lng BETWEEN ? AND 180 OR lng BETWEEN -180 AND ?)`
	}
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE lat BETWEEN ? AND ? AND `+lngFilter+` AND (? = '' OR place_type = ?)`,
		minLat, maxLat, minLng, maxLng, placeType, placeType,
	)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to query nearby places: %w", err)
	}
	defer rows.Close()

	type hit struct {
		rec  places.Record
		dist float64
	}
	var hits []hit
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			otel.RecordError(span, err)
			return nil, fmt.Errorf("failed to scan place: %w", err)
		}
		if d := places.DistanceKm(center, *rec.Location); d <= distanceKm {
			hits = append(hits, hit{rec: rec, dist: d})
		}
	}
	if err := rows.Err(); err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to iterate nearby places: %w", err)
	}

	slices.SortFunc(hits, func(a, b hit) int {
		switch {
		case a.dist < b.dist:
			return -1
		case a.dist > b.dist:
			return 1
		default:
			return 0
		}
	})

	out := make([]places.Record, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.rec)
	}
	span.SetAttributes(otel.AttrResultCount.Int(len(out)))
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// FindByText matches query as a substring of name or address. LIKE is
// case-insensitive for ASCII.
func (s *Store) FindByText(ctx context.Context, query string) ([]places.Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []places.Record{}, nil
	}

	ctx, span := otel.StartSpan(ctx, s.tracer, "sqlite.FindByText")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, textQuery, "%"+likeEscaper.Replace(query)+"%")
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to search places: %w", err)
	}
	defer rows.Close()

	out := []places.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			otel.RecordError(span, err)
			return nil, fmt.Errorf("failed to scan place: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to iterate places: %w", err)
	}

	span.SetAttributes(otel.AttrResultCount.Int(len(out)))
	return out, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsert(ctx context.Context, db execer, rec places.Record, now time.Time) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}

	var lat, lng sql.NullFloat64
	if rec.Location != nil {
		lat = sql.NullFloat64{Float64: rec.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: rec.Location.Lng, Valid: true}
	}

	var openingHours sql.NullString
	if rec.OpeningHours != nil {
		data, err := json.Marshal(rec.OpeningHours)
		if err != nil {
			return fmt.Errorf("failed to encode opening hours of %s: %w", rec.ID, err)
		}
		openingHours = sql.NullString{String: string(data), Valid: true}
	}

	_, err := db.ExecContext(ctx, upsertQuery,
		rec.ID, rec.Name, rec.Address, rec.Type, lat, lng, openingHours, now.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to upsert place %s: %w", rec.ID, err)
	}
	return nil
}

// Upsert inserts or replaces rec
func (s *Store) Upsert(ctx context.Context, rec places.Record) error {
	ctx, span := otel.StartSpan(ctx, s.tracer, "sqlite.Upsert",
		trace.WithAttributes(otel.AttrPlaceID.String(rec.ID)))
	defer span.End()

	err := upsert(ctx, s.db, rec, s.now())
	otel.RecordError(span, err)
	return err
}

// UpsertMany writes all records in one transaction
func (s *Store) UpsertMany(ctx context.Context, recs []places.Record) (err error) {
	if len(recs) == 0 {
		return nil
	}

	ctx, span := otel.StartSpan(ctx, s.tracer, "sqlite.UpsertMany",
		trace.WithAttributes(otel.AttrResultCount.Int(len(recs))))
	defer span.End()
	defer func() { otel.RecordError(span, err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := s.now()
	for _, rec := range recs {
		if err = upsert(ctx, tx, rec, now); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
