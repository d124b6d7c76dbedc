package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/transiteye/tracker/internal/adapters/http"
	natsadapter "github.com/transiteye/tracker/internal/adapters/nats"
	"github.com/transiteye/tracker/internal/adapters/postgres"
	"github.com/transiteye/tracker/internal/adapters/valkey"
	"github.com/transiteye/tracker/internal/core/domain"
	"github.com/transiteye/tracker/internal/core/geofence"
	"github.com/transiteye/tracker/internal/core/ports"
	"github.com/transiteye/tracker/internal/core/usecases"
	"github.com/transiteye/tracker/internal/pkg/config"
	"github.com/transiteye/tracker/internal/pkg/logging"
	"github.com/transiteye/tracker/internal/pkg/metrics"
	"github.com/transiteye/tracker/internal/pkg/telemetry"
	"github.com/transiteye/tracker/internal/scheduler"
)

func main() {
	cfg, err := config.Load("tracker")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
			case <-ctx.Done():
				return
			}
		}
	}()

	// Route lookups fall through to Postgres when the cache is down.
	var routeCache ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		routeCache = cache
	}

	// Events are best effort; ticks still run without NATS.
	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, events disabled", "error", err)
	} else {
		defer pub.Close()
		events = pub
	}

	vehicleRepo := postgres.NewVehicleRepo(db)
	tripRepo := postgres.NewTripRepo(db)
	requestRepo := postgres.NewPassengerRequestRepo(db)
	routes := usecases.NewRouteService(postgres.NewRouteRepo(db), routeCache, cfg.Valkey.RouteTTL)

	tripSvc := usecases.NewTripService(
		vehicleRepo,
		routes,
		postgres.NewGeofenceStateRepo(db),
		tripRepo,
		events,
		geofence.Radii{Enter: cfg.Geofence.EnterRadius, ExitBuffer: cfg.Geofence.ExitBuffer},
	)
	pickupSvc := usecases.NewPickupService(requestRepo, vehicleRepo, events, usecases.PickupOptions{
		Threshold: cfg.Matching.PickupThreshold,
		Exclusive: cfg.Matching.ExclusiveAssignment,
	})
	dropoffSvc := usecases.NewDropoffService(requestRepo, vehicleRepo, events, cfg.Matching.DropoffThreshold)
	positionSvc := usecases.NewPositionService(vehicleRepo, postgres.NewAssignmentRepo(db), events)
	fleetSvc := usecases.NewFleetService(vehicleRepo, tripRepo, requestRepo)

	sched, err := scheduler.New(
		scheduler.Task{Name: scheduler.TaskGeofence, Interval: cfg.Scheduler.GeofenceInterval, Run: func(ctx context.Context) (any, error) {
			return tripSvc.EvaluateAll(ctx)
		}},
		scheduler.Task{Name: scheduler.TaskPickup, Interval: cfg.Scheduler.PickupInterval, Run: func(ctx context.Context) (any, error) {
			return pickupSvc.MatchPending(ctx)
		}},
		scheduler.Task{Name: scheduler.TaskDropoff, Interval: cfg.Scheduler.DropoffInterval, Run: func(ctx context.Context) (any, error) {
			return dropoffSvc.CheckDropoffs(ctx)
		}},
	)
	if err != nil {
		log.Fatalf("scheduler: %v", err)
	}
	if cfg.Scheduler.Enabled {
		sched.Start(ctx)
	} else {
		slog.Info("in-process scheduler disabled; ticks are driven externally")
	}

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		slog.Warn("position stream unavailable", "error", err)
	} else {
		defer sub.Close()
		err = sub.SubscribePositions(ctx, func(ctx context.Context, source string, updates []domain.PositionUpdate) error {
			_, err := positionSvc.Apply(ctx, source, updates)
			return err
		})
		if err != nil {
			slog.Warn("subscribe positions failed", "error", err)
		}
	}

	// Raw NATS connection for WebSocket relay
	wsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer wsConn.Close()
	}

	deps := &http.Dependencies{
		Fleet:     fleetSvc,
		Positions: positionSvc,
		Scheduler: sched,
		NATS:      wsConn,
		DB:        db,
		Cache:     cache,
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024,
		AppName:      "Tracker",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("tracker starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			slog.Error("listen failed", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received, draining...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	// Let in-flight ticks finish before the pools close.
	sched.Wait()
	slog.Info("tracker stopped")
}
