package telemetry

// Span names and attribute keys used for tracing.
const (
	// Spans
	SpanTick         = "scheduler.tick"
	SpanApplyFeed    = "feed.apply"
	SpanPublishEvent = "events.publish"

	// Attributes
	AttrTask      = "tracker.task"
	AttrRunID     = "tracker.run_id"
	AttrChannel   = "tracker.channel"
	AttrEventType = "tracker.event_type"
	AttrBatchSize = "tracker.batch_size"
	AttrSource    = "tracker.source"
)
