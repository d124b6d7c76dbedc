package usecases

import (
	"context"

	"github.com/transiteye/tracker/internal/core/ports"
	"github.com/transiteye/tracker/internal/pkg/logging"
	"github.com/transiteye/tracker/internal/pkg/metrics"
)

// notify publishes best-effort. A failure is logged and counted, never returned:
// the state change it announces is already persisted.
func notify(ctx context.Context, events ports.EventPublisher, channel, eventType string, payload any) {
	if events == nil {
		return
	}
	if err := events.Publish(ctx, channel, eventType, payload); err != nil {
		metrics.PublishErrors.WithLabelValues(eventType).Inc()
		logging.FromContext(ctx).Warn("publish event failed",
			"channel", channel, "event_type", eventType, "error", err)
	}
}

func skipped(task, reason string) {
	metrics.EntitiesSkipped.WithLabelValues(task, reason).Inc()
}
