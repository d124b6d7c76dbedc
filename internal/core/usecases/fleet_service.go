package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/transiteye/tracker/internal/core/domain"
	"github.com/transiteye/tracker/internal/core/ports"
)

// FleetService serves the read side: vehicles, trips, requests and trip metrics.
type FleetService struct {
	vehicles ports.VehicleRepository
	trips    ports.TripRepository
	requests ports.PassengerRequestRepository
}

// NewFleetService creates a new FleetService.
func NewFleetService(vehicles ports.VehicleRepository, trips ports.TripRepository, requests ports.PassengerRequestRepository) *FleetService {
	return &FleetService{vehicles: vehicles, trips: trips, requests: requests}
}

// Vehicles returns every vehicle with its latest position.
func (s *FleetService) Vehicles(ctx context.Context) ([]domain.Vehicle, error) {
	return s.vehicles.List(ctx)
}

// ActiveTrips returns open trips.
func (s *FleetService) ActiveTrips(ctx context.Context) ([]domain.Trip, error) {
	return s.trips.ListActive(ctx)
}

// Requests returns passenger requests with the given status.
func (s *FleetService) Requests(ctx context.Context, status domain.RequestStatus) ([]domain.PassengerRequest, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}
	return s.requests.ListByStatus(ctx, status)
}

// TripsPerVehicle counts trips each vehicle completed on day.
func (s *FleetService) TripsPerVehicle(ctx context.Context, day time.Time) ([]domain.VehicleTripCount, error) {
	return s.trips.CountCompletedPerVehicle(ctx, truncateDay(day))
}

// ActivityByHour returns, for each hour of day, the distinct vehicles that started a trip.
func (s *FleetService) ActivityByHour(ctx context.Context, day time.Time) ([]domain.HourlyActivity, error) {
	return s.trips.ActiveVehiclesByHour(ctx, truncateDay(day))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
