package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/transiteye/tracker/internal/core/domain"
	"github.com/transiteye/tracker/internal/core/ports"
	"github.com/transiteye/tracker/internal/pkg/geospatial"
	"github.com/transiteye/tracker/internal/pkg/logging"
	"github.com/transiteye/tracker/internal/pkg/metrics"
)

const (
	taskPickup = "pickup"

	// DefaultPickupThreshold is the max vehicle distance, in meters, for a pickup.
	DefaultPickupThreshold = 100.0
)

// PickupOptions configures the matcher.
type PickupOptions struct {
	Threshold float64 // meters
	// Exclusive removes a vehicle from the candidate pool once it is assigned
	// in the current tick. Off, several requests may pick the same vehicle.
	Exclusive bool
}

// PickupService assigns pending passenger requests to their nearest vehicle.
type PickupService struct {
	requests ports.PassengerRequestRepository
	vehicles ports.VehicleRepository
	events   ports.EventPublisher
	opts     PickupOptions
	now      func() time.Time
}

// NewPickupService creates a new PickupService.
func NewPickupService(
	requests ports.PassengerRequestRepository,
	vehicles ports.VehicleRepository,
	events ports.EventPublisher,
	opts PickupOptions,
) *PickupService {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultPickupThreshold
	}
	return &PickupService{requests: requests, vehicles: vehicles, events: events, opts: opts, now: time.Now}
}

// WithClock replaces the time source.
func (s *PickupService) WithClock(now func() time.Time) *PickupService {
	s.now = now
	return s
}

// MatchPending runs one matching tick and returns the assignments made.
func (s *PickupService) MatchPending(ctx context.Context) ([]domain.Assignment, error) {
	log := logging.FromContext(ctx)

	pending, err := s.requests.ListByStatus(ctx, domain.RequestPending)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	assignments := []domain.Assignment{}
	if len(pending) == 0 {
		return assignments, nil
	}

	vehicles, err := s.vehicles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}

	var reserved map[int64]bool
	if s.opts.Exclusive {
		reserved = make(map[int64]bool)
	}

	for i := range pending {
		req := &pending[i]
		if !req.Pickup.Valid() {
			log.Warn("request has invalid pickup point, skipping", "request_id", req.ID)
			skipped(taskPickup, "invalid_pickup")
			continue
		}

		vehicle, distance, ok := NearestVehicle(req.Pickup, vehicles, reserved)
		if !ok || distance > s.opts.Threshold {
			continue
		}

		if err := req.Advance(domain.RequestPickedUp); err != nil {
			log.Warn("request cannot be picked up, skipping", "request_id", req.ID, "error", err)
			skipped(taskPickup, "invalid_status")
			continue
		}

		now := s.now()
		updated, err := s.requests.MarkPickedUp(ctx, req.ID, vehicle.ID, now)
		if err != nil {
			return assignments, fmt.Errorf("mark request %d picked up: %w", req.ID, err)
		}
		if !updated {
			log.Info("request no longer pending, skipping", "request_id", req.ID)
			skipped(taskPickup, "stale_status")
			continue
		}
		if reserved != nil {
			reserved[vehicle.ID] = true
		}

		metrics.Pickups.Inc()
		log.Info("passenger picked up",
			"request_id", req.ID, "passenger_id", req.PassengerID,
			"vehicle_id", vehicle.ID, "distance_m", distance)

		a := domain.Assignment{
			RequestID:      req.ID,
			PassengerID:    req.PassengerID,
			VehicleID:      vehicle.ID,
			DistanceMeters: distance,
		}
		assignments = append(assignments, a)

		ev := domain.ProximityEvent{
			RequestID:      req.ID,
			PassengerID:    req.PassengerID,
			VehicleID:      vehicle.ID,
			Status:         domain.RequestPickedUp,
			DistanceMeters: distance,
			At:             now,
		}
		notify(ctx, s.events, domain.ChannelAdmin, domain.EventPassengerPickedUp, ev)
		notify(ctx, s.events, domain.PassengerChannel(req.PassengerID), domain.EventTripUpdate, ev)
		notify(ctx, s.events, domain.UserChannel(req.PassengerID), domain.EventNotification, domain.Notification{
			Title:   "Bus Near Pickup",
			Type:    "proximity",
			Content: fmt.Sprintf("%s is %.0f m from your pickup point.", vehicleName(vehicle), distance),
			Date:    now,
		})
	}

	return assignments, nil
}

// NearestVehicle returns the positioned vehicle closest to p, skipping ids in
// exclude. Exact ties go to the lowest vehicle id.
func NearestVehicle(p domain.GeoPoint, vehicles []domain.Vehicle, exclude map[int64]bool) (*domain.Vehicle, float64, bool) {
	var (
		best     *domain.Vehicle
		bestDist float64
	)
	for i := range vehicles {
		v := &vehicles[i]
		if v.Location == nil || !v.Location.Valid() || exclude[v.ID] {
			continue
		}
		d := geospatial.Distance(p, *v.Location)
		if best == nil || d < bestDist || (d == bestDist && v.ID < best.ID) {
			best, bestDist = v, d
		}
	}
	return best, bestDist, best != nil
}

func vehicleName(v *domain.Vehicle) string {
	if v.Label != "" {
		return "Bus " + v.Label
	}
	return fmt.Sprintf("Bus %d", v.ID)
}
