package workflows

import (
	"context"

	"github.com/transiteye/tracker/internal/core/domain"
	"github.com/transiteye/tracker/internal/core/usecases"
	"github.com/transiteye/tracker/internal/scheduler"
)

// TripEvaluator runs the trip lifecycle tick.
type TripEvaluator interface {
	EvaluateAll(ctx context.Context) (*usecases.TripTickResult, error)
}

// PickupMatcher runs the pickup matching tick.
type PickupMatcher interface {
	MatchPending(ctx context.Context) ([]domain.Assignment, error)
}

// DropoffChecker runs the dropoff detection tick.
type DropoffChecker interface {
	CheckDropoffs(ctx context.Context) ([]domain.Dropoff, error)
}

// TrackingActivities exposes the tracking ticks as Temporal activities.
type TrackingActivities struct {
	Trips    TripEvaluator
	Pickups  PickupMatcher
	Dropoffs DropoffChecker
}

// RunGeofenceTick evaluates every vehicle against its route geofences.
func (a *TrackingActivities) RunGeofenceTick(ctx context.Context) (TickSummary, error) {
	res, err := a.Trips.EvaluateAll(ctx)
	if err != nil {
		return TickSummary{}, err
	}
	return TickSummary{
		Task:      scheduler.TaskGeofence,
		Evaluated: res.Evaluated,
		Skipped:   res.Skipped,
		Started:   len(res.Started),
		Completed: len(res.Completed),
	}, nil
}

// RunPickupTick assigns pending requests to nearby vehicles.
func (a *TrackingActivities) RunPickupTick(ctx context.Context) (TickSummary, error) {
	assigned, err := a.Pickups.MatchPending(ctx)
	if err != nil {
		return TickSummary{}, err
	}
	return TickSummary{Task: scheduler.TaskPickup, Matched: len(assigned)}, nil
}

// RunDropoffTick completes picked-up requests near their dropoff point.
func (a *TrackingActivities) RunDropoffTick(ctx context.Context) (TickSummary, error) {
	dropped, err := a.Dropoffs.CheckDropoffs(ctx)
	if err != nil {
		return TickSummary{}, err
	}
	return TickSummary{Task: scheduler.TaskDropoff, Matched: len(dropped)}, nil
}
