package postgres

import (
	"context"
)

// AssignmentRepo implements ports.VehicleAssignmentRepository.
type AssignmentRepo struct {
	db *DB
}

func NewAssignmentRepo(db *DB) *AssignmentRepo {
	return &AssignmentRepo{db: db}
}

// CrewForVehicle returns the distinct drivers and conductors on active assignments.
func (r *AssignmentRepo) CrewForVehicle(ctx context.Context, vehicleID int64) ([]int64, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT crew_id FROM (
			SELECT driver_id AS crew_id FROM vehicle_assignment WHERE vehicle_id = $1 AND active
			UNION
			SELECT conductor_id FROM vehicle_assignment WHERE vehicle_id = $1 AND active
		) c
		WHERE crew_id IS NOT NULL
		ORDER BY crew_id
	`, vehicleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var crew []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		crew = append(crew, id)
	}
	return crew, rows.Err()
}
