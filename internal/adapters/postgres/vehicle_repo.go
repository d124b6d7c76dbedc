package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/transiteye/tracker/internal/core/domain"
)

// VehicleRepo implements ports.VehicleRepository.
type VehicleRepo struct {
	db *DB
}

func NewVehicleRepo(db *DB) *VehicleRepo {
	return &VehicleRepo{db: db}
}

const vehicleColumns = `vehicle_id, label, lat, lng, route_id,
	current_passenger_count, total_passenger_count, last_seen_at`

func scanVehicle(row pgx.Row) (*domain.Vehicle, error) {
	var (
		v        domain.Vehicle
		lat, lng *float64
	)
	if err := row.Scan(&v.ID, &v.Label, &lat, &lng, &v.RouteID,
		&v.CurrentPassengers, &v.TotalPassengers, &v.LastSeenAt); err != nil {
		return nil, err
	}
	v.Location = point(lat, lng)
	return &v, nil
}

// List returns every vehicle ordered by id, which is the snapshot order of a tick.
func (r *VehicleRepo) List(ctx context.Context) ([]domain.Vehicle, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+vehicleColumns+` FROM vehicles ORDER BY vehicle_id`)
	if err != nil {
		return nil, fmt.Errorf("query vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []domain.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vehicle: %w", err)
		}
		vehicles = append(vehicles, *v)
	}
	return vehicles, rows.Err()
}

func (r *VehicleRepo) GetByID(ctx context.Context, id int64) (*domain.Vehicle, error) {
	v, err := scanVehicle(r.db.Pool.QueryRow(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE vehicle_id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return v, nil
}

func (r *VehicleRepo) UpdatePosition(ctx context.Context, id int64, loc domain.GeoPoint, passengers, added int, at time.Time) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE vehicles
		SET lat = $2, lng = $3,
		    current_passenger_count = $4,
		    total_passenger_count = total_passenger_count + $5,
		    last_seen_at = $6
		WHERE vehicle_id = $1
	`, id, loc.Lat, loc.Lng, passengers, added, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
