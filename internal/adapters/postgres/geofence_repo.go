package postgres

import (
	"context"

	"github.com/transiteye/tracker/internal/core/domain"
)

// GeofenceStateRepo implements ports.GeofenceStateRepository.
type GeofenceStateRepo struct {
	db *DB
}

func NewGeofenceStateRepo(db *DB) *GeofenceStateRepo {
	return &GeofenceStateRepo{db: db}
}

func (r *GeofenceStateRepo) Get(ctx context.Context, vehicleID int64) (*domain.GeofenceState, error) {
	s := &domain.GeofenceState{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT vehicle_id, at_start, at_end, last_updated
		FROM vehicle_geofence_state WHERE vehicle_id = $1
	`, vehicleID).Scan(&s.VehicleID, &s.AtStart, &s.AtEnd, &s.LastUpdated)
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

func (r *GeofenceStateRepo) Upsert(ctx context.Context, s *domain.GeofenceState) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO vehicle_geofence_state (vehicle_id, at_start, at_end, last_updated)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (vehicle_id) DO UPDATE
		SET at_start = EXCLUDED.at_start, at_end = EXCLUDED.at_end, last_updated = EXCLUDED.last_updated
	`, s.VehicleID, s.AtStart, s.AtEnd, s.LastUpdated)
	return err
}
