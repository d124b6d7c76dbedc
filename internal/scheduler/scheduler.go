// Package scheduler runs the periodic tracking tasks. Each task has its own
// ticker; a task never overlaps itself, and a failing or panicking tick only
// ends that tick.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/transiteye/tracker/internal/pkg/logging"
	"github.com/transiteye/tracker/internal/pkg/metrics"
	"github.com/transiteye/tracker/internal/pkg/telemetry"
)

// Tracking task names.
const (
	TaskGeofence = "geofence"
	TaskPickup   = "pickup"
	TaskDropoff  = "dropoff"
)

var (
	// ErrAlreadyRunning is returned when a task is triggered while its previous run is in flight.
	ErrAlreadyRunning = errors.New("task already running")
	// ErrUnknownTask is returned by Trigger for an unregistered name.
	ErrUnknownTask = errors.New("unknown task")
)

// RunFunc executes one tick and returns a JSON-serialisable summary.
type RunFunc func(ctx context.Context) (any, error)

// Task is a named periodic job.
type Task struct {
	Name     string
	Interval time.Duration
	Run      RunFunc
}

type task struct {
	Task
	running atomic.Bool
}

// Scheduler drives a fixed set of tasks.
type Scheduler struct {
	tasks map[string]*task
	order []string
	wg    sync.WaitGroup
}

// New registers tasks. Names must be unique.
func New(tasks ...Task) (*Scheduler, error) {
	s := &Scheduler{tasks: make(map[string]*task, len(tasks))}
	for _, t := range tasks {
		if t.Name == "" || t.Run == nil || t.Interval <= 0 {
			return nil, fmt.Errorf("invalid task %q", t.Name)
		}
		if _, dup := s.tasks[t.Name]; dup {
			return nil, fmt.Errorf("duplicate task %q", t.Name)
		}
		s.tasks[t.Name] = &task{Task: t}
		s.order = append(s.order, t.Name)
	}
	return s, nil
}

// Tasks returns registered task names in registration order.
func (s *Scheduler) Tasks() []string {
	return append([]string(nil), s.order...)
}

// Start launches one loop per task and returns. Each loop runs its task once
// immediately, then on every tick until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	for _, name := range s.order {
		t := s.tasks[name]
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop(ctx, t)
		}()
	}
}

// Wait blocks until every loop started by Start has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, t *task) {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	logging.FromContext(ctx).Info("task scheduled", "task", t.Name, "interval", t.Interval)

	_, _ = s.execute(ctx, t)
	for {
		select {
		case <-ticker.C:
			_, _ = s.execute(ctx, t)
		case <-ctx.Done():
			return
		}
	}
}

// Trigger runs a task now, under the same single-flight guard as its ticker.
func (s *Scheduler) Trigger(ctx context.Context, name string) (any, error) {
	t, ok := s.tasks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return s.execute(ctx, t)
}

func (s *Scheduler) execute(ctx context.Context, t *task) (result any, err error) {
	log := logging.FromContext(ctx).With("task", t.Name)

	if !t.running.CompareAndSwap(false, true) {
		metrics.TickOverlaps.WithLabelValues(t.Name).Inc()
		log.Warn("previous run still in progress, skipping")
		return nil, ErrAlreadyRunning
	}
	defer t.running.Store(false)

	runID := uuid.NewString()
	log = log.With("run_id", runID)
	ctx = logging.WithLogger(ctx, log)

	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanTick, trace.WithAttributes(
		attribute.String(telemetry.AttrTask, t.Name),
		attribute.String(telemetry.AttrRunID, runID),
	))
	defer span.End()

	start := time.Now()
	result, err = safeRun(ctx, t.Run)
	duration := time.Since(start)
	metrics.TickDuration.WithLabelValues(t.Name).Observe(duration.Seconds())

	if err != nil {
		metrics.TickErrors.WithLabelValues(t.Name).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("tick failed", "error", err, "duration", duration)
		return result, err
	}
	log.Debug("tick completed", "duration", duration)
	return result, nil
}

func safeRun(ctx context.Context, run RunFunc) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return run(ctx)
}
