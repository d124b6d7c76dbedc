package http

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/transiteye/tracker/internal/adapters/postgres"
	"github.com/transiteye/tracker/internal/adapters/valkey"
	"github.com/transiteye/tracker/internal/core/domain"
	"github.com/transiteye/tracker/internal/core/usecases"
)

// TaskTrigger runs a scheduled task on demand.
type TaskTrigger interface {
	Trigger(ctx context.Context, name string) (any, error)
}

// PositionApplier ingests position readings.
type PositionApplier interface {
	Apply(ctx context.Context, source string, updates []domain.PositionUpdate) (usecases.ApplyResult, error)
}

// FleetReader serves the read side.
type FleetReader interface {
	Vehicles(ctx context.Context) ([]domain.Vehicle, error)
	ActiveTrips(ctx context.Context) ([]domain.Trip, error)
	Requests(ctx context.Context, status domain.RequestStatus) ([]domain.PassengerRequest, error)
	TripsPerVehicle(ctx context.Context, day time.Time) ([]domain.VehicleTripCount, error)
	ActivityByHour(ctx context.Context, day time.Time) ([]domain.HourlyActivity, error)
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Fleet     FleetReader
	Positions PositionApplier
	Scheduler TaskTrigger
	NATS      *nats.Conn
	DB        *postgres.DB
	Cache     *valkey.Cache
}
