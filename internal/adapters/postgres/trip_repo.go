package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/transiteye/tracker/internal/core/domain"
)

// TripRepo implements ports.TripRepository.
type TripRepo struct {
	db *DB
}

func NewTripRepo(db *DB) *TripRepo {
	return &TripRepo{db: db}
}

const tripColumns = `trip_id, vehicle_id, start_time, start_lat, start_lng,
	end_time, end_lat, end_lng, status`

func scanTrip(row pgx.Row) (*domain.Trip, error) {
	var (
		t              domain.Trip
		endLat, endLng *float64
	)
	if err := row.Scan(&t.ID, &t.VehicleID, &t.StartTime, &t.Start.Lat, &t.Start.Lng,
		&t.EndTime, &endLat, &endLng, &t.Status); err != nil {
		return nil, err
	}
	t.End = point(endLat, endLng)
	return &t, nil
}

func (r *TripRepo) ActiveByVehicle(ctx context.Context, vehicleID int64) (*domain.Trip, error) {
	t, err := scanTrip(r.db.Pool.QueryRow(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE vehicle_id = $1 AND end_time IS NULL`, vehicleID))
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

// Start inserts an active trip. The partial unique index on open trips turns a
// concurrent start into zero returned rows.
func (r *TripRepo) Start(ctx context.Context, vehicleID int64, at time.Time, loc domain.GeoPoint) (*domain.Trip, error) {
	t, err := scanTrip(r.db.Pool.QueryRow(ctx, `
		INSERT INTO trips (vehicle_id, start_time, start_lat, start_lng, status)
		VALUES ($1, $2, $3, $4, 'active')
		ON CONFLICT (vehicle_id) WHERE end_time IS NULL DO NOTHING
		RETURNING `+tripColumns,
		vehicleID, at, loc.Lat, loc.Lng))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrActiveTripExists
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Complete closes the trip and, when a next route is given, reassigns the
// vehicle in the same transaction so a failed chain leaves the trip open.
func (r *TripRepo) Complete(ctx context.Context, c domain.TripCompletion) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE trips
		SET end_time = $2, end_lat = $3, end_lng = $4, status = 'completed'
		WHERE trip_id = $1 AND end_time IS NULL
	`, c.TripID, c.At, c.End.Lat, c.End.Lng)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	if c.NextRouteID != nil {
		tag, err = tx.Exec(ctx, `UPDATE vehicles SET route_id = $2 WHERE vehicle_id = $1`, c.VehicleID, *c.NextRouteID)
		if err != nil {
			return fmt.Errorf("chain route: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("chain route: vehicle %d does not exist", c.VehicleID)
		}
	}
	return tx.Commit(ctx)
}

func (r *TripRepo) ListActive(ctx context.Context) ([]domain.Trip, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE end_time IS NULL ORDER BY start_time`)
	if err != nil {
		return nil, fmt.Errorf("query active trips: %w", err)
	}
	defer rows.Close()

	var trips []domain.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		trips = append(trips, *t)
	}
	return trips, rows.Err()
}

// CountCompletedPerVehicle counts trips that ended within the 24h starting at day.
func (r *TripRepo) CountCompletedPerVehicle(ctx context.Context, day time.Time) ([]domain.VehicleTripCount, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT vehicle_id, COUNT(*)
		FROM trips
		WHERE status = 'completed' AND end_time >= $1 AND end_time < $2
		GROUP BY vehicle_id
		ORDER BY vehicle_id
	`, day, day.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []domain.VehicleTripCount
	for rows.Next() {
		var c domain.VehicleTripCount
		if err := rows.Scan(&c.VehicleID, &c.Trips); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// ActiveVehiclesByHour counts distinct vehicles per hour that started a trip
// within the 24h starting at day. Hours are in day's location.
func (r *TripRepo) ActiveVehiclesByHour(ctx context.Context, day time.Time) ([]domain.HourlyActivity, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT date_trunc('hour', start_time) AS hour, COUNT(DISTINCT vehicle_id)
		FROM trips
		WHERE start_time >= $1 AND start_time < $2
		GROUP BY hour
		ORDER BY hour
	`, day, day.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activity []domain.HourlyActivity
	for rows.Next() {
		var (
			hour  time.Time
			count int
		)
		if err := rows.Scan(&hour, &count); err != nil {
			return nil, err
		}
		activity = append(activity, domain.HourlyActivity{Hour: hour.In(day.Location()).Hour(), Vehicles: count})
	}
	return activity, rows.Err()
}
