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
	taskDropoff = "dropoff"

	// DefaultDropoffThreshold is the max vehicle distance, in meters, from a dropoff point.
	DefaultDropoffThreshold = 50.0
)

// DropoffService closes picked-up requests whose vehicle reached the dropoff point.
type DropoffService struct {
	requests  ports.PassengerRequestRepository
	vehicles  ports.VehicleRepository
	events    ports.EventPublisher
	threshold float64
	now       func() time.Time
}

// NewDropoffService creates a new DropoffService. threshold is in meters.
func NewDropoffService(
	requests ports.PassengerRequestRepository,
	vehicles ports.VehicleRepository,
	events ports.EventPublisher,
	threshold float64,
) *DropoffService {
	if threshold <= 0 {
		threshold = DefaultDropoffThreshold
	}
	return &DropoffService{requests: requests, vehicles: vehicles, events: events, threshold: threshold, now: time.Now}
}

// WithClock replaces the time source.
func (s *DropoffService) WithClock(now func() time.Time) *DropoffService {
	s.now = now
	return s
}

// CheckDropoffs runs one dropoff tick and returns the requests closed.
func (s *DropoffService) CheckDropoffs(ctx context.Context) ([]domain.Dropoff, error) {
	log := logging.FromContext(ctx)

	riding, err := s.requests.ListByStatus(ctx, domain.RequestPickedUp)
	if err != nil {
		return nil, fmt.Errorf("list picked up requests: %w", err)
	}
	dropoffs := []domain.Dropoff{}
	if len(riding) == 0 {
		return dropoffs, nil
	}

	vehicles, err := s.vehicles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	byID := make(map[int64]*domain.Vehicle, len(vehicles))
	for i := range vehicles {
		byID[vehicles[i].ID] = &vehicles[i]
	}

	for i := range riding {
		req := &riding[i]
		rlog := log.With("request_id", req.ID)

		if req.Dropoff == nil || !req.Dropoff.Valid() {
			rlog.Info("request has no dropoff point, skipping")
			skipped(taskDropoff, "no_dropoff")
			continue
		}
		if req.VehicleID == nil {
			rlog.Warn("picked up request has no vehicle, skipping")
			skipped(taskDropoff, "no_vehicle")
			continue
		}
		vehicle, ok := byID[*req.VehicleID]
		if !ok {
			rlog.Warn("assigned vehicle not found, skipping", "vehicle_id", *req.VehicleID)
			skipped(taskDropoff, "missing_vehicle")
			continue
		}
		if vehicle.Location == nil || !vehicle.Location.Valid() {
			rlog.Info("assigned vehicle has no valid position, skipping", "vehicle_id", vehicle.ID)
			skipped(taskDropoff, "no_position")
			continue
		}

		distance := geospatial.Distance(*vehicle.Location, *req.Dropoff)
		if distance > s.threshold {
			continue
		}

		if err := req.Advance(domain.RequestDroppedOff); err != nil {
			rlog.Warn("request cannot be dropped off, skipping", "error", err)
			skipped(taskDropoff, "invalid_status")
			continue
		}

		now := s.now()
		updated, err := s.requests.MarkDroppedOff(ctx, req.ID, now)
		if err != nil {
			return dropoffs, fmt.Errorf("mark request %d dropped off: %w", req.ID, err)
		}
		if !updated {
			rlog.Info("request no longer picked up, skipping")
			skipped(taskDropoff, "stale_status")
			continue
		}

		metrics.Dropoffs.Inc()
		rlog.Info("passenger dropped off",
			"passenger_id", req.PassengerID, "vehicle_id", vehicle.ID, "distance_m", distance)

		dropoffs = append(dropoffs, domain.Dropoff{
			RequestID:      req.ID,
			PassengerID:    req.PassengerID,
			VehicleID:      vehicle.ID,
			DistanceMeters: distance,
		})

		ev := domain.ProximityEvent{
			RequestID:      req.ID,
			PassengerID:    req.PassengerID,
			VehicleID:      vehicle.ID,
			Status:         domain.RequestDroppedOff,
			DistanceMeters: distance,
			At:             now,
		}
		notify(ctx, s.events, domain.ChannelAdmin, domain.EventPassengerDroppedOff, ev)
		notify(ctx, s.events, domain.PassengerChannel(req.PassengerID), domain.EventTripUpdate, ev)
		notify(ctx, s.events, domain.UserChannel(req.PassengerID), domain.EventNotification, domain.Notification{
			Title:   "Bus Near Dropoff",
			Type:    "proximity",
			Content: fmt.Sprintf("%s is %.0f m from your dropoff point.", vehicleName(vehicle), distance),
			Date:    now,
		})
	}

	return dropoffs, nil
}
