package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/transiteye/tracker/internal/scheduler"
)

// TickInput selects which tracking task a workflow run executes.
type TickInput struct {
	Task string
}

// TickSummary is the compact result of one tracking tick.
type TickSummary struct {
	Task      string `json:"task"`
	Evaluated int    `json:"evaluated,omitempty"`
	Skipped   int    `json:"skipped,omitempty"`
	Started   int    `json:"started,omitempty"`
	Completed int    `json:"completed,omitempty"`
	Matched   int    `json:"matched,omitempty"`
}

var activityByTask = map[string]string{
	scheduler.TaskGeofence: "RunGeofenceTick",
	scheduler.TaskPickup:   "RunPickupTick",
	scheduler.TaskDropoff:  "RunDropoffTick",
}

// TrackingTickWorkflow runs one tick of a tracking task as a single activity.
// The activity is not retried; the next scheduled run takes its place.
func TrackingTickWorkflow(ctx workflow.Context, input TickInput) (TickSummary, error) {
	logger := workflow.GetLogger(ctx)

	activity, ok := activityByTask[input.Task]
	if !ok {
		return TickSummary{}, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("unknown task %q", input.Task), "UnknownTask", nil)
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	var summary TickSummary
	if err := workflow.ExecuteActivity(ctx, activity).Get(ctx, &summary); err != nil {
		logger.Warn("tracking tick failed", "task", input.Task, "error", err)
		return TickSummary{}, err
	}

	logger.Info("tracking tick completed", "task", input.Task, "summary", summary)
	return summary, nil
}
