package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/transiteye/tracker/internal/adapters/nats"
	"github.com/transiteye/tracker/internal/adapters/postgres"
	"github.com/transiteye/tracker/internal/adapters/valkey"
	"github.com/transiteye/tracker/internal/core/geofence"
	"github.com/transiteye/tracker/internal/core/ports"
	"github.com/transiteye/tracker/internal/core/usecases"
	"github.com/transiteye/tracker/internal/pkg/config"
	"github.com/transiteye/tracker/internal/pkg/logging"
	"github.com/transiteye/tracker/internal/scheduler"
	"github.com/transiteye/tracker/internal/workflows"
)

func main() {
	cfg, err := config.Load("tracker-worker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var routeCache ports.CacheService
	if cache, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		routeCache = cache
	}

	var events ports.EventPublisher
	if pub, err := natsadapter.NewPublisher(cfg.NATS.URL); err != nil {
		slog.Warn("nats unavailable, events disabled", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	vehicleRepo := postgres.NewVehicleRepo(db)
	requestRepo := postgres.NewPassengerRequestRepo(db)
	routes := usecases.NewRouteService(postgres.NewRouteRepo(db), routeCache, cfg.Valkey.RouteTTL)

	acts := &workflows.TrackingActivities{
		Trips: usecases.NewTripService(
			vehicleRepo,
			routes,
			postgres.NewGeofenceStateRepo(db),
			postgres.NewTripRepo(db),
			events,
			geofence.Radii{Enter: cfg.Geofence.EnterRadius, ExitBuffer: cfg.Geofence.ExitBuffer},
		),
		Pickups: usecases.NewPickupService(requestRepo, vehicleRepo, events, usecases.PickupOptions{
			Threshold: cfg.Matching.PickupThreshold,
			Exclusive: cfg.Matching.ExclusiveAssignment,
		}),
		Dropoffs: usecases.NewDropoffService(requestRepo, vehicleRepo, events, cfg.Matching.DropoffThreshold),
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slogAdapter{slog.Default()},
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	intervals := map[string]time.Duration{
		scheduler.TaskGeofence: cfg.Scheduler.GeofenceInterval,
		scheduler.TaskPickup:   cfg.Scheduler.PickupInterval,
		scheduler.TaskDropoff:  cfg.Scheduler.DropoffInterval,
	}
	for task, every := range intervals {
		if err := ensureSchedule(ctx, c, cfg.Temporal.TaskQueue, task, every); err != nil {
			log.Fatalf("schedule %s: %v", task, err)
		}
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.TrackingTickWorkflow)
	w.RegisterActivity(acts)

	slog.Info("tracking worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

// ensureSchedule creates the periodic schedule for task. An existing schedule is left as is.
func ensureSchedule(ctx context.Context, c client.Client, queue, task string, every time.Duration) error {
	id := "tracking-" + task
	_, err := c.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: id,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{{Every: every}},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        id,
			Workflow:  workflows.TrackingTickWorkflow,
			Args:      []interface{}{workflows.TickInput{Task: task}},
			TaskQueue: queue,
		},
		Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
	})
	if errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
		slog.Info("schedule already exists", "schedule_id", id)
		return nil
	}
	if err == nil {
		slog.Info("schedule created", "schedule_id", id, "every", every)
	}
	return err
}

// slogAdapter routes Temporal SDK logs through slog.
type slogAdapter struct{ l *slog.Logger }

func (a slogAdapter) Debug(msg string, keyvals ...interface{}) { a.l.Debug(msg, keyvals...) }
func (a slogAdapter) Info(msg string, keyvals ...interface{})  { a.l.Info(msg, keyvals...) }
func (a slogAdapter) Warn(msg string, keyvals ...interface{})  { a.l.Warn(msg, keyvals...) }
func (a slogAdapter) Error(msg string, keyvals ...interface{}) { a.l.Error(msg, keyvals...) }
