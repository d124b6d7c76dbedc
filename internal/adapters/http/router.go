package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/transiteye/tracker/internal/pkg/metrics"
	"github.com/transiteye/tracker/internal/scheduler"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// 120 requests per minute per IP. Position ingest is exempt; gateways post every few seconds.
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/v1/positions" || strings.HasPrefix(c.Path(), "/ws")
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		return c.Next()
	})

	app.Get("/v1/health", HealthHandler())
	app.Get("/v1/ready", ReadyHandler(deps))
	SetupDocs(app)

	v1 := app.Group("/v1")
	v1.Post("/positions", timeout.NewWithContext(PostPositionsHandler(deps), requestTimeout))

	// Manual runs of the scheduled tasks. No request timeout: a tick runs to
	// completion the same way a scheduled one does.
	v1.Post("/trips/evaluate", TriggerHandler(deps, scheduler.TaskGeofence))
	v1.Post("/passenger-trips/pickups/check", TriggerHandler(deps, scheduler.TaskPickup))
	v1.Post("/passenger-trips/dropoffs/check", TriggerHandler(deps, scheduler.TaskDropoff))

	v1.Get("/vehicles", timeout.NewWithContext(ListVehiclesHandler(deps), requestTimeout))
	v1.Get("/trips/active", timeout.NewWithContext(ActiveTripsHandler(deps), requestTimeout))
	v1.Get("/trips/metrics/per-vehicle", timeout.NewWithContext(TripsPerVehicleHandler(deps), requestTimeout))
	v1.Get("/trips/metrics/by-hour", timeout.NewWithContext(ActivityByHourHandler(deps), requestTimeout))
	v1.Get("/passenger-trips", timeout.NewWithContext(PassengerTripsHandler(deps), requestTimeout))

	app.Post("/graphql", GraphQLHandler(deps))

	if deps.NATS != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
	}
}
