package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/transiteye/tracker/internal/core/domain"
)

// PassengerRequestRepo implements ports.PassengerRequestRepository.
type PassengerRequestRepo struct {
	db *DB
}

func NewPassengerRequestRepo(db *DB) *PassengerRequestRepo {
	return &PassengerRequestRepo{db: db}
}

// ListByStatus returns requests in arrival order.
func (r *PassengerRequestRepo) ListByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.PassengerRequest, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT request_id, passenger_id, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
		       route_id, vehicle_id, status, created_at
		FROM passenger_trip
		WHERE status = $1
		ORDER BY created_at, request_id
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
	}
	defer rows.Close()

	var reqs []domain.PassengerRequest
	for rows.Next() {
		var (
			p          domain.PassengerRequest
			dLat, dLng *float64
		)
		if err := rows.Scan(&p.ID, &p.PassengerID, &p.Pickup.Lat, &p.Pickup.Lng, &dLat, &dLng,
			&p.RouteID, &p.VehicleID, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		p.Dropoff = point(dLat, dLng)
		reqs = append(reqs, p)
	}
	return reqs, rows.Err()
}

// MarkPickedUp only moves a request that is still pending.
func (r *PassengerRequestRepo) MarkPickedUp(ctx context.Context, requestID, vehicleID int64, at time.Time) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE passenger_trip
		SET status = 'picked_up', vehicle_id = $2, picked_up_at = $3
		WHERE request_id = $1 AND status = 'pending'
	`, requestID, vehicleID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkDroppedOff only moves a request that is still picked up.
func (r *PassengerRequestRepo) MarkDroppedOff(ctx context.Context, requestID int64, at time.Time) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE passenger_trip
		SET status = 'dropped_off', dropped_off_at = $2
		WHERE request_id = $1 AND status = 'picked_up'
	`, requestID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
