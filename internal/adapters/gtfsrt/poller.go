package gtfsrt

import (
	"context"
	"log/slog"
	"time"

	"github.com/transiteye/tracker/internal/core/domain"
)

// Source labels updates produced by the poller.
const Source = "gtfsrt"

// Sink receives each decoded batch.
type Sink func(ctx context.Context, source string, updates []domain.PositionUpdate) error

// Poller fetches a feed on a fixed interval and hands positions to a sink.
type Poller struct {
	client   *Client
	url      string
	interval time.Duration
	sink     Sink
}

// NewPoller creates a new Poller.
func NewPoller(client *Client, url string, interval time.Duration, sink Sink) *Poller {
	return &Poller{client: client, url: url, interval: interval, sink: sink}
}

// Run polls once immediately, then every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	slog.Info("gtfs-rt poller started", "url", p.url, "interval", p.interval)

	p.PollOnce(ctx)
	for {
		select {
		case <-ticker.C:
			p.PollOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// PollOnce runs a single fetch. Failures are logged; the next tick retries.
func (p *Poller) PollOnce(ctx context.Context) {
	feed, err := p.client.Fetch(ctx, p.url)
	if err != nil {
		slog.Error("fetch gtfs-rt feed", "url", p.url, "error", err)
		return
	}

	updates, skipped := Positions(feed)
	if skipped > 0 {
		slog.Warn("gtfs-rt entities skipped", "count", skipped)
	}
	if len(updates) == 0 {
		return
	}
	if err := p.sink(ctx, Source, updates); err != nil {
		slog.Error("forward gtfs-rt positions", "count", len(updates), "error", err)
		return
	}
	slog.Info("gtfs-rt positions forwarded", "count", len(updates))
}
