package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/transiteye/tracker/internal/core/domain"
	"github.com/transiteye/tracker/internal/core/ports"
	"github.com/transiteye/tracker/internal/pkg/logging"
	"github.com/transiteye/tracker/internal/pkg/metrics"
	"github.com/transiteye/tracker/internal/pkg/telemetry"
)

const taskFeed = "feed"

// ApplyResult summarises one position batch.
type ApplyResult struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
}

// PositionService applies position feed batches to vehicles.
type PositionService struct {
	vehicles ports.VehicleRepository
	crew     ports.VehicleAssignmentRepository
	events   ports.EventPublisher
	now      func() time.Time
}

// NewPositionService creates a new PositionService. crew may be nil.
func NewPositionService(vehicles ports.VehicleRepository, crew ports.VehicleAssignmentRepository, events ports.EventPublisher) *PositionService {
	return &PositionService{vehicles: vehicles, crew: crew, events: events, now: time.Now}
}

// WithClock replaces the time source.
func (s *PositionService) WithClock(now func() time.Time) *PositionService {
	s.now = now
	return s
}

// AddedPassengers is the boarding delta between two counter readings.
// A drop in the instantaneous count never adds passengers.
func AddedPassengers(previous, current int) int {
	return max(0, current-previous)
}

// Apply stores each update in order and broadcasts the updated vehicles.
// source labels the ingest metric ("nats", "http", "gtfsrt").
func (s *PositionService) Apply(ctx context.Context, source string, updates []domain.PositionUpdate) (ApplyResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanApplyFeed, trace.WithAttributes(
		attribute.String(telemetry.AttrSource, source),
		attribute.Int(telemetry.AttrBatchSize, len(updates)),
	))
	defer span.End()

	log := logging.FromContext(ctx)
	var res ApplyResult

	updated := make([]domain.Vehicle, 0, len(updates))
	index := make(map[int64]int, len(updates))

	for _, u := range updates {
		if !u.Location.Valid() || (u.PassengerCount != nil && *u.PassengerCount < 0) {
			log.Warn("invalid position update, skipping", "vehicle_id", u.VehicleID)
			skipped(taskFeed, "invalid_position")
			res.Skipped++
			continue
		}

		v, err := s.vehicles.GetByID(ctx, u.VehicleID)
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("position for unknown vehicle, skipping", "vehicle_id", u.VehicleID)
			skipped(taskFeed, "unknown_vehicle")
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("get vehicle %d: %w", u.VehicleID, err)
		}

		passengers, added := v.CurrentPassengers, 0
		if u.PassengerCount != nil {
			passengers = *u.PassengerCount
			added = AddedPassengers(v.CurrentPassengers, passengers)
		}
		at := u.Timestamp
		if at.IsZero() {
			at = s.now()
		}

		if err := s.vehicles.UpdatePosition(ctx, v.ID, u.Location, passengers, added, at); err != nil {
			return res, fmt.Errorf("update vehicle %d position: %w", v.ID, err)
		}

		loc := u.Location
		v.Location = &loc
		v.CurrentPassengers = passengers
		v.TotalPassengers += added
		seen := at
		v.LastSeenAt = &seen
		if i, ok := index[v.ID]; ok {
			updated[i] = *v
		} else {
			index[v.ID] = len(updated)
			updated = append(updated, *v)
		}
		res.Applied++
	}

	metrics.PositionsIngested.WithLabelValues(source).Add(float64(res.Applied))
	if len(updated) > 0 {
		s.broadcast(ctx, updated)
	}
	return res, nil
}

func (s *PositionService) broadcast(ctx context.Context, vehicles []domain.Vehicle) {
	notify(ctx, s.events, domain.ChannelUsers, domain.EventVehicleUpdate, vehicles)
	if s.crew == nil {
		return
	}
	for _, v := range vehicles {
		crew, err := s.crew.CrewForVehicle(ctx, v.ID)
		if err != nil {
			logging.FromContext(ctx).Warn("resolve vehicle crew failed", "vehicle_id", v.ID, "error", err)
			continue
		}
		for _, id := range crew {
			notify(ctx, s.events, domain.CrewChannel(id), domain.EventVehicleUpdate, v)
		}
	}
}
