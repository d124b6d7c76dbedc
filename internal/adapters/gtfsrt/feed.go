// Package gtfsrt turns a GTFS-Realtime VehiclePositions feed into position updates.
package gtfsrt

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/transiteye/tracker/internal/core/domain"
)

// Client fetches GTFS-RT protobuf feeds over HTTP.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a client with the given request timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// Fetch downloads and parses a feed.
func (c *Client) Fetch(ctx context.Context, url string) (*gtfsrtpb.FeedMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/x-protobuf")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return Parse(body)
}

// Parse unmarshals raw protobuf bytes.
func Parse(data []byte) (*gtfsrtpb.FeedMessage, error) {
	feed := &gtfsrtpb.FeedMessage{}
	if err := proto.Unmarshal(data, feed); err != nil {
		return nil, fmt.Errorf("unmarshal protobuf: %w", err)
	}
	return feed, nil
}

// Positions extracts one update per vehicle entity. Entities without a
// position or without a numeric vehicle id are counted in skipped.
// GTFS-RT carries no passenger counter, so PassengerCount stays nil.
func Positions(feed *gtfsrtpb.FeedMessage) (updates []domain.PositionUpdate, skipped int) {
	var headerTS time.Time
	if h := feed.GetHeader(); h != nil && h.Timestamp != nil {
		headerTS = time.Unix(int64(h.GetTimestamp()), 0).UTC()
	}

	for _, entity := range feed.GetEntity() {
		vp := entity.GetVehicle()
		if vp == nil {
			continue
		}
		pos := vp.GetPosition()
		if pos == nil {
			skipped++
			continue
		}

		id, ok := vehicleID(entity, vp)
		if !ok {
			skipped++
			continue
		}

		ts := headerTS
		if vp.Timestamp != nil {
			ts = time.Unix(int64(vp.GetTimestamp()), 0).UTC()
		}

		updates = append(updates, domain.PositionUpdate{
			VehicleID: id,
			Location: domain.GeoPoint{
				Lat: float64(pos.GetLatitude()),
				Lng: float64(pos.GetLongitude()),
			},
			Timestamp: ts,
		})
	}
	return updates, skipped
}

// vehicleID tries the descriptor id, then its label, then the entity id.
func vehicleID(entity *gtfsrtpb.FeedEntity, vp *gtfsrtpb.VehiclePosition) (int64, bool) {
	candidates := []string{entity.GetId()}
	if v := vp.GetVehicle(); v != nil {
		candidates = []string{v.GetId(), v.GetLabel(), entity.GetId()}
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if id, err := strconv.ParseInt(c, 10, 64); err == nil && id > 0 {
			return id, true
		}
	}
	return 0, false
}
