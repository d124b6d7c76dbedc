package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/transiteye/tracker/internal/adapters/gtfsrt"
	natsadapter "github.com/transiteye/tracker/internal/adapters/nats"
	"github.com/transiteye/tracker/internal/pkg/config"
	"github.com/transiteye/tracker/internal/pkg/logging"
)

// feed polls a GTFS-Realtime vehicle positions feed and republishes the
// readings onto the position stream consumed by the tracker.
func main() {
	cfg, err := config.Load("tracker-feed")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	if cfg.Feed.GTFSRTURL == "" {
		log.Fatal("feed.gtfsrt_url is not set (TRACKER_FEED_GTFSRT_URL)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	poller := gtfsrt.NewPoller(
		gtfsrt.NewClient(cfg.Feed.HTTPTimeout),
		cfg.Feed.GTFSRTURL,
		cfg.Feed.PollInterval,
		pub.PublishPositions,
	)

	slog.Info("gtfs-rt feed started", "url", cfg.Feed.GTFSRTURL, "interval", cfg.Feed.PollInterval)
	poller.Run(ctx)
	slog.Info("gtfs-rt feed stopped")
}
