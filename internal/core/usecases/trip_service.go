package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/transiteye/tracker/internal/core/domain"
	"github.com/transiteye/tracker/internal/core/geofence"
	"github.com/transiteye/tracker/internal/core/ports"
	"github.com/transiteye/tracker/internal/pkg/logging"
	"github.com/transiteye/tracker/internal/pkg/metrics"
)

const taskGeofence = "geofence"

// TripTickResult summarises one pass of the trip lifecycle evaluator.
type TripTickResult struct {
	Evaluated int                `json:"evaluated"`
	Skipped   int                `json:"skipped"`
	Started   []domain.TripEvent `json:"started"`
	Completed []domain.TripEvent `json:"completed"`
}

// TripService opens and closes trips as vehicles cross their route's geofences.
type TripService struct {
	vehicles ports.VehicleRepository
	routes   ports.RouteRepository
	states   ports.GeofenceStateRepository
	trips    ports.TripRepository
	events   ports.EventPublisher
	radii    geofence.Radii
	now      func() time.Time
}

// NewTripService creates a new TripService.
func NewTripService(
	vehicles ports.VehicleRepository,
	routes ports.RouteRepository,
	states ports.GeofenceStateRepository,
	trips ports.TripRepository,
	events ports.EventPublisher,
	radii geofence.Radii,
) *TripService {
	return &TripService{
		vehicles: vehicles,
		routes:   routes,
		states:   states,
		trips:    trips,
		events:   events,
		radii:    radii,
		now:      time.Now,
	}
}

// WithClock replaces the time source.
func (s *TripService) WithClock(now func() time.Time) *TripService {
	s.now = now
	return s
}

// EvaluateAll runs one tick over every vehicle in snapshot order. A persistence
// error aborts the tick; the partial result is still returned.
func (s *TripService) EvaluateAll(ctx context.Context) (*TripTickResult, error) {
	vehicles, err := s.vehicles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}

	res := &TripTickResult{Started: []domain.TripEvent{}, Completed: []domain.TripEvent{}}
	for i := range vehicles {
		if err := s.evaluate(ctx, &vehicles[i], res); err != nil {
			return res, fmt.Errorf("vehicle %d: %w", vehicles[i].ID, err)
		}
	}
	return res, nil
}

func (s *TripService) evaluate(ctx context.Context, v *domain.Vehicle, res *TripTickResult) error {
	log := logging.FromContext(ctx).With("vehicle_id", v.ID)

	if v.RouteID == nil {
		log.Info("vehicle has no assigned route, skipping")
		s.skip(res, "no_route")
		return nil
	}
	if v.Location == nil || !v.Location.Valid() {
		log.Info("vehicle has no valid position, skipping")
		s.skip(res, "no_position")
		return nil
	}

	route, err := s.routes.GetByID(ctx, *v.RouteID)
	if errors.Is(err, domain.ErrNotFound) {
		log.Warn("assigned route not found, skipping", "route_id", *v.RouteID)
		s.skip(res, "missing_route")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get route %d: %w", *v.RouteID, err)
	}

	prev, err := s.states.Get(ctx, v.ID)
	if errors.Is(err, domain.ErrNotFound) {
		prev = &domain.GeofenceState{VehicleID: v.ID}
	} else if err != nil {
		return fmt.Errorf("get geofence state: %w", err)
	}

	now := s.now()
	pos := *v.Location
	atStart := geofence.Evaluate(pos, route.Start, prev.AtStart, s.radii)
	atEnd := geofence.Evaluate(pos, route.End, prev.AtEnd, s.radii)
	enteredStart := atStart && !prev.AtStart
	enteredEnd := atEnd && !prev.AtEnd
	res.Evaluated++

	if enteredStart || enteredEnd {
		active, err := s.trips.ActiveByVehicle(ctx, v.ID)
		if errors.Is(err, domain.ErrNotFound) {
			active = nil
		} else if err != nil {
			return fmt.Errorf("get active trip: %w", err)
		}

		// Loop routes put both endpoints in range at once. Only one edge fires
		// per tick; the other flag keeps its old value and fires next tick.
		if enteredStart && enteredEnd {
			if active != nil {
				enteredStart, atStart = false, prev.AtStart
			} else {
				enteredEnd, atEnd = false, prev.AtEnd
			}
		}

		switch {
		case enteredStart:
			if err := s.startTrip(ctx, log, v, route, active, now, res); err != nil {
				return err
			}
		case enteredEnd:
			if err := s.completeTrip(ctx, log, v, route, active, now, res); err != nil {
				return err
			}
		}
	} else {
		if prev.AtStart && !atStart {
			log.Debug("vehicle left start zone", "route_id", route.ID)
		}
		if prev.AtEnd && !atEnd {
			log.Debug("vehicle left end zone", "route_id", route.ID)
		}
	}

	state := &domain.GeofenceState{VehicleID: v.ID, AtStart: atStart, AtEnd: atEnd, LastUpdated: now}
	if err := s.states.Upsert(ctx, state); err != nil {
		return fmt.Errorf("save geofence state: %w", err)
	}
	return nil
}

func (s *TripService) startTrip(ctx context.Context, log *slog.Logger, v *domain.Vehicle, route *domain.Route, active *domain.Trip, now time.Time, res *TripTickResult) error {
	if active != nil {
		log.Info("entered start zone with an active trip, ignoring", "trip_id", active.ID)
		return nil
	}

	trip, err := s.trips.Start(ctx, v.ID, now, *v.Location)
	if errors.Is(err, domain.ErrActiveTripExists) {
		log.Info("trip already opened concurrently, ignoring")
		return nil
	}
	if err != nil {
		return fmt.Errorf("start trip: %w", err)
	}

	metrics.TripsStarted.Inc()
	log.Info("trip started", "trip_id", trip.ID, "route_id", route.ID)

	ev := domain.TripEvent{
		VehicleID: v.ID,
		TripID:    trip.ID,
		RouteID:   route.ID,
		Status:    domain.TripActive,
		At:        now,
	}
	res.Started = append(res.Started, ev)
	notify(ctx, s.events, domain.ChannelAdmin, domain.EventTripStarted, ev)
	return nil
}

func (s *TripService) completeTrip(ctx context.Context, log *slog.Logger, v *domain.Vehicle, route *domain.Route, active *domain.Trip, now time.Time, res *TripTickResult) error {
	if active == nil {
		log.Info("entered end zone without an active trip, ignoring", "route_id", route.ID)
		return nil
	}

	// The chain target is resolved before anything is written so a failed
	// lookup leaves the trip open and the end edge fires again next tick.
	next, chained, err := s.routes.NextRoute(ctx, route.ID)
	if err != nil {
		return fmt.Errorf("next route of %d: %w", route.ID, err)
	}

	c := domain.TripCompletion{TripID: active.ID, VehicleID: v.ID, At: now, End: *v.Location}
	if chained {
		c.NextRouteID = &next
	}
	err = s.trips.Complete(ctx, c)
	if errors.Is(err, domain.ErrNotFound) {
		log.Info("trip already completed concurrently, ignoring", "trip_id", active.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("complete trip %d: %w", active.ID, err)
	}
	metrics.TripsCompleted.Inc()

	ev := domain.TripEvent{
		VehicleID:   v.ID,
		TripID:      active.ID,
		RouteID:     route.ID,
		Status:      domain.TripCompleted,
		At:          now,
		NextRouteID: c.NextRouteID,
	}
	if chained {
		metrics.RoutesChained.Inc()
		log.Info("trip completed, route chained", "trip_id", active.ID, "route_id", route.ID, "next_route_id", next)
	} else {
		// No mapping: the vehicle keeps its current route.
		log.Info("trip completed, no chained route found", "trip_id", active.ID, "route_id", route.ID)
	}

	res.Completed = append(res.Completed, ev)
	notify(ctx, s.events, domain.ChannelAdmin, domain.EventTripCompleted, ev)
	return nil
}

func (s *TripService) skip(res *TripTickResult, reason string) {
	res.Skipped++
	skipped(taskGeofence, reason)
}
