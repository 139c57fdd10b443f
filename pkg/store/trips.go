package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NERVsystems/ecoroute/pkg/emissions"
	"github.com/NERVsystems/ecoroute/pkg/trip"
	"github.com/google/uuid"
)

// MaxRecentTrips caps how many trips Recent returns
const MaxRecentTrips = 10

// NewTrip is the data needed to record a trip
type NewTrip struct {
	OwnerID            *string
	OriginAddress      string
	DestinationAddress string
	Origin             trip.LatLng
	Destination        trip.LatLng
	Mode               emissions.TravelMode
	DistanceKm         float64
	DurationMinutes    int
	CarbonFootprintKg  float64
	EcoScore           int
	RouteData          json.RawMessage
}

// TripStore reads and writes route_history. Trips are append only.
type TripStore struct {
	db *DB
}

type tripRow struct {
	ID                 string         `db:"id"`
	UserID             sql.NullString `db:"user_id"`
	OriginAddress      string         `db:"origin_address"`
	DestinationAddress string         `db:"destination_address"`
	OriginLat          float64        `db:"origin_lat"`
	OriginLng          float64        `db:"origin_lng"`
	DestinationLat     float64        `db:"destination_lat"`
	DestinationLng     float64        `db:"destination_lng"`
	TransportMode      string         `db:"transport_mode"`
	DistanceKm         float64        `db:"distance_km"`
	DurationMinutes    int            `db:"duration_minutes"`
	CarbonFootprintKg  float64        `db:"carbon_footprint_kg"`
	EcoScore           int            `db:"eco_score"`
	RouteData          sql.NullString `db:"route_data"`
	CreatedAt          int64          `db:"created_at"`
}

func (r tripRow) toTrip() trip.Trip {
	t := trip.Trip{
		ID:                 r.ID,
		OriginAddress:      r.OriginAddress,
		DestinationAddress: r.DestinationAddress,
		Origin:             trip.LatLng{Lat: r.OriginLat, Lng: r.OriginLng},
		Destination:        trip.LatLng{Lat: r.DestinationLat, Lng: r.DestinationLng},
		Mode:               emissions.TravelMode(r.TransportMode),
		DistanceKm:         r.DistanceKm,
		DurationMinutes:    r.DurationMinutes,
		CarbonFootprintKg:  r.CarbonFootprintKg,
		EcoScore:           r.EcoScore,
		CreatedAt:          time.UnixMilli(r.CreatedAt).UTC(),
	}
	if r.UserID.Valid {
		owner := r.UserID.String
		t.OwnerID = &owner
	}
	if r.RouteData.Valid {
		t.RouteData = json.RawMessage(r.RouteData.String)
	}
	return t
}

const tripColumns = `id, user_id, origin_address, destination_address,
	origin_lat, origin_lng, destination_lat, destination_lng,
	transport_mode, distance_km, duration_minutes, carbon_footprint_kg,
	eco_score, route_data, created_at`

// Create records a trip and returns it with its id and creation time.
func (s *TripStore) Create(ctx context.Context, in NewTrip) (trip.Trip, error) {
	if !in.Mode.Valid() {
		return trip.Trip{}, fmt.Errorf("%w: unknown travel mode %q", emissions.ErrInvalidInput, in.Mode)
	}
	if len(in.RouteData) > 0 && !json.Valid(in.RouteData) {
		return trip.Trip{}, fmt.Errorf("%w: route data is not valid JSON", emissions.ErrInvalidInput)
	}

	row := tripRow{
		ID:                 uuid.NewString(),
		OriginAddress:      in.OriginAddress,
		DestinationAddress: in.DestinationAddress,
		OriginLat:          in.Origin.Lat,
		OriginLng:          in.Origin.Lng,
		DestinationLat:     in.Destination.Lat,
		DestinationLng:     in.Destination.Lng,
		TransportMode:      string(in.Mode),
		DistanceKm:         in.DistanceKm,
		DurationMinutes:    in.DurationMinutes,
		CarbonFootprintKg:  in.CarbonFootprintKg,
		EcoScore:           in.EcoScore,
		CreatedAt:          s.db.now().UTC().UnixMilli(),
	}
	if in.OwnerID != nil {
		row.UserID = sql.NullString{String: *in.OwnerID, Valid: true}
	}
	if len(in.RouteData) > 0 {
		row.RouteData = sql.NullString{String: string(in.RouteData), Valid: true}
	}

	err := s.db.observe(ctx, "trips.create", func(ctx context.Context) error {
		_, err := s.db.db.NamedExecContext(ctx, `
			INSERT INTO route_history (`+tripColumns+`)
			VALUES (:id, :user_id, :origin_address, :destination_address,
				:origin_lat, :origin_lng, :destination_lat, :destination_lng,
				:transport_mode, :distance_km, :duration_minutes, :carbon_footprint_kg,
				:eco_score, :route_data, :created_at)`, row)
		return err
	})
	if err != nil {
		return trip.Trip{}, fmt.Errorf("saving trip: %w", err)
	}
	return row.toTrip(), nil
}

// Recent returns up to limit trips for owner, newest first. A nil owner
// selects anonymous trips only. limit is clamped to MaxRecentTrips.
func (s *TripStore) Recent(ctx context.Context, owner *string, limit int) ([]trip.Trip, error) {
	if limit <= 0 || limit > MaxRecentTrips {
		limit = MaxRecentTrips
	}

	where, args := ownerClause(owner)
	query := `SELECT ` + tripColumns + ` FROM route_history WHERE ` + where +
		` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	return s.query(ctx, "trips.recent", query, args...)
}

// Between returns all of owner's trips created in [from, to), oldest first.
func (s *TripStore) Between(ctx context.Context, owner *string, from, to time.Time) ([]trip.Trip, error) {
	where, args := ownerClause(owner)
	query := `SELECT ` + tripColumns + ` FROM route_history WHERE ` + where +
		` AND created_at >= ? AND created_at < ? ORDER BY created_at, rowid`
	args = append(args, from.UTC().UnixMilli(), to.UTC().UnixMilli())

	return s.query(ctx, "trips.between", query, args...)
}

func (s *TripStore) query(ctx context.Context, op, query string, args ...any) ([]trip.Trip, error) {
	var rows []tripRow
	err := s.db.observe(ctx, op, func(ctx context.Context) error {
		return s.db.db.SelectContext(ctx, &rows, query, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("loading trips: %w", err)
	}

	trips := make([]trip.Trip, len(rows))
	for i, r := range rows {
		trips[i] = r.toTrip()
	}
	return trips, nil
}

// Anonymous and owned trips never mix.
func ownerClause(owner *string) (string, []any) {
	if owner == nil {
		return "user_id IS NULL", nil
	}
	return "user_id = ?", []any{*owner}
}
