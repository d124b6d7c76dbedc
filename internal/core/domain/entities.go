package domain

import (
	"fmt"
	"time"
)

// Vehicle is a tracked bus with its latest reported position.
type Vehicle struct {
	ID                int64      `json:"vehicle_id"`
	Label             string     `json:"label,omitempty"`
	Location          *GeoPoint  `json:"location,omitempty"` // nil until the feed reports a position
	RouteID           *int64     `json:"route_id,omitempty"`
	CurrentPassengers int        `json:"current_passenger_count"`
	TotalPassengers   int        `json:"total_passenger_count"`
	LastSeenAt        *time.Time `json:"last_seen_at,omitempty"`
}

// Route is a fixed leg between two geofenced endpoints.
type Route struct {
	ID    int64    `json:"route_id"`
	Name  string   `json:"route_name,omitempty"`
	Start GeoPoint `json:"start"`
	End   GeoPoint `json:"end"`
}

// RouteMapping links a completed route to the next leg a vehicle follows.
type RouteMapping struct {
	FromRouteID int64 `json:"from_route_id"`
	ToRouteID   int64 `json:"to_route_id"`
}

// GeofenceState is the per-vehicle boundary history used for edge detection.
type GeofenceState struct {
	VehicleID   int64     `json:"vehicle_id"`
	AtStart     bool      `json:"at_start"`
	AtEnd       bool      `json:"at_end"`
	LastUpdated time.Time `json:"last_updated"`
}

// Trip is one traversal of a route from its start geofence to its end geofence.
type Trip struct {
	ID        int64      `json:"trip_id"`
	VehicleID int64      `json:"vehicle_id"`
	StartTime time.Time  `json:"start_time"`
	Start     GeoPoint   `json:"start"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	End       *GeoPoint  `json:"end,omitempty"`
	Status    TripStatus `json:"status"`
}

// TripCompletion closes an active trip. When NextRouteID is set the vehicle is
// moved onto it in the same write.
type TripCompletion struct {
	TripID      int64
	VehicleID   int64
	At          time.Time
	End         GeoPoint
	NextRouteID *int64
}

// PassengerRequest is a pickup/dropoff request waiting for or riding a vehicle.
type PassengerRequest struct {
	ID          int64         `json:"request_id"`
	PassengerID int64         `json:"passenger_id"`
	Pickup      GeoPoint      `json:"pickup"`
	Dropoff     *GeoPoint     `json:"dropoff,omitempty"`
	RouteID     *int64        `json:"route_id,omitempty"`
	VehicleID   *int64        `json:"vehicle_id,omitempty"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

// PositionUpdate is one reading delivered by the position feed.
type PositionUpdate struct {
	VehicleID      int64     `json:"vehicle_id"`
	Location       GeoPoint  `json:"location"`
	PassengerCount *int      `json:"passenger_count,omitempty"` // nil when the source has no counter
	Timestamp      time.Time `json:"timestamp"`
}

// Assignment records a pending request matched to its nearest vehicle.
type Assignment struct {
	RequestID      int64   `json:"request_id"`
	PassengerID    int64   `json:"passenger_id"`
	VehicleID      int64   `json:"vehicle_id"`
	DistanceMeters float64 `json:"distance_meters"`
}

// Dropoff records a picked-up request that reached its dropoff point.
type Dropoff struct {
	RequestID      int64   `json:"request_id"`
	PassengerID    int64   `json:"passenger_id"`
	VehicleID      int64   `json:"vehicle_id"`
	DistanceMeters float64 `json:"distance_meters"`
}

// VehicleTripCount is the number of completed trips a vehicle made on a date.
type VehicleTripCount struct {
	VehicleID int64 `json:"vehicle_id"`
	Trips     int   `json:"trips"`
}

// HourlyActivity is the number of distinct vehicles that started a trip in an hour.
type HourlyActivity struct {
	Hour     int `json:"hour"`
	Vehicles int `json:"buses"`
}

// Advance moves the request one step forward to next.
func (r *PassengerRequest) Advance(next RequestStatus) error {
	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, next)
	}
	r.Status = next
	return nil
}
