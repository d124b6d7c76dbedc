package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/transiteye/tracker/internal/core/domain"
)

// RouteRepo implements ports.RouteRepository.
type RouteRepo struct {
	db *DB
}

func NewRouteRepo(db *DB) *RouteRepo {
	return &RouteRepo{db: db}
}

func (r *RouteRepo) GetByID(ctx context.Context, id int64) (*domain.Route, error) {
	route := &domain.Route{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT route_id, route_name, start_lat, start_lng, end_lat, end_lng
		FROM routes WHERE route_id = $1
	`, id).Scan(&route.ID, &route.Name, &route.Start.Lat, &route.Start.Lng, &route.End.Lat, &route.End.Lng)
	if err != nil {
		return nil, notFound(err)
	}
	return route, nil
}

func (r *RouteRepo) NextRoute(ctx context.Context, fromRouteID int64) (int64, bool, error) {
	var to int64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT to_route_id FROM route_mapping WHERE from_route_id = $1`, fromRouteID).Scan(&to)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return to, true, nil
}
