package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tracker",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Scheduler metrics
	TickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tracker",
		Subsystem: "scheduler",
		Name:      "tick_duration_seconds",
		Help:      "Duration of one periodic task execution",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"task"})

	TickErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "scheduler",
		Name:      "tick_errors_total",
		Help:      "Total task executions that ended in an error or panic",
	}, []string{"task"})

	TickOverlaps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "scheduler",
		Name:      "tick_overlaps_skipped_total",
		Help:      "Total executions skipped because the previous one was still running",
	}, []string{"task"})

	// Tracking metrics
	TripsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "trips",
		Name:      "started_total",
		Help:      "Total trips opened by the geofence evaluator",
	})

	TripsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "trips",
		Name:      "completed_total",
		Help:      "Total trips closed by the geofence evaluator",
	})

	RoutesChained = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "trips",
		Name:      "routes_chained_total",
		Help:      "Total vehicles moved to their mapped next route",
	})

	Pickups = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "passengers",
		Name:      "picked_up_total",
		Help:      "Total pending requests assigned to a nearby vehicle",
	})

	Dropoffs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "passengers",
		Name:      "dropped_off_total",
		Help:      "Total picked-up requests that reached their dropoff point",
	})

	EntitiesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "tracking",
		Name:      "entities_skipped_total",
		Help:      "Total vehicles or requests skipped because of missing data",
	}, []string{"task", "reason"})

	PositionsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "feed",
		Name:      "positions_ingested_total",
		Help:      "Total position updates applied, by source",
	}, []string{"source"})

	PublishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tracker",
		Subsystem: "events",
		Name:      "publish_errors_total",
		Help:      "Total real-time events that could not be published",
	}, []string{"event_type"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tracker",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tracker",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tracker",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics updates database pool gauges from pgxpool stats.
// The interface keeps this package free of a pgx import.
func UpdateDBPoolMetrics(stat interface{}) {
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}
