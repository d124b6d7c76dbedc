package ports

import (
	"context"
	"time"

	"github.com/transiteye/tracker/internal/core/domain"
)

// VehicleRepository persists vehicles and their latest positions.
type VehicleRepository interface {
	List(ctx context.Context) ([]domain.Vehicle, error)
	GetByID(ctx context.Context, id int64) (*domain.Vehicle, error)
	// UpdatePosition stores the latest reading; added is accumulated into the total-served counter.
	UpdatePosition(ctx context.Context, id int64, loc domain.GeoPoint, passengers, added int, at time.Time) error
}

// RouteRepository reads routes and their chaining.
type RouteRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Route, error)
	// NextRoute returns the mapped next leg of fromRouteID; ok is false when no mapping exists.
	NextRoute(ctx context.Context, fromRouteID int64) (toRouteID int64, ok bool, err error)
}

// GeofenceStateRepository persists per-vehicle geofence state.
type GeofenceStateRepository interface {
	Get(ctx context.Context, vehicleID int64) (*domain.GeofenceState, error)
	Upsert(ctx context.Context, state *domain.GeofenceState) error
}

// TripRepository persists trips.
type TripRepository interface {
	ActiveByVehicle(ctx context.Context, vehicleID int64) (*domain.Trip, error)
	// Start opens a trip; it returns domain.ErrActiveTripExists if one is already open.
	Start(ctx context.Context, vehicleID int64, at time.Time, loc domain.GeoPoint) (*domain.Trip, error)
	// Complete closes the trip and applies the route chain atomically; it
	// returns domain.ErrNotFound if the trip is no longer open.
	Complete(ctx context.Context, c domain.TripCompletion) error
	ListActive(ctx context.Context) ([]domain.Trip, error)
	CountCompletedPerVehicle(ctx context.Context, day time.Time) ([]domain.VehicleTripCount, error)
	ActiveVehiclesByHour(ctx context.Context, day time.Time) ([]domain.HourlyActivity, error)
}

// PassengerRequestRepository persists passenger pickup/dropoff requests.
type PassengerRequestRepository interface {
	ListByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.PassengerRequest, error)
	// MarkPickedUp moves a pending request to picked_up; false means it was no longer pending.
	MarkPickedUp(ctx context.Context, requestID, vehicleID int64, at time.Time) (bool, error)
	// MarkDroppedOff moves a picked_up request to dropped_off; false means it was no longer picked_up.
	MarkDroppedOff(ctx context.Context, requestID int64, at time.Time) (bool, error)
}

// VehicleAssignmentRepository resolves the crew currently assigned to a vehicle.
type VehicleAssignmentRepository interface {
	CrewForVehicle(ctx context.Context, vehicleID int64) ([]int64, error)
}
