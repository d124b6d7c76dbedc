package domain

import (
	"fmt"
	"time"
)

// Broadcast channels.
const (
	ChannelAdmin = "admin"
	ChannelUsers = "users" // every connected user
)

// PassengerChannel is the per-passenger trip channel.
func PassengerChannel(passengerID int64) string {
	return fmt.Sprintf("trip_%d", passengerID)
}

// UserChannel is the per-user notification channel.
func UserChannel(userID int64) string {
	return fmt.Sprintf("user_%d", userID)
}

// CrewChannel is the per-driver/conductor channel.
func CrewChannel(employeeID int64) string {
	return fmt.Sprintf("conductor_%d", employeeID)
}

// Event types.
const (
	EventTripStarted         = "TripStarted"
	EventTripCompleted       = "TripCompleted"
	EventPassengerPickedUp   = "PassengerPickedUp"
	EventPassengerDroppedOff = "PassengerDroppedOff"
	EventTripUpdate          = "tripUpdate"
	EventNotification        = "newNotification"
	EventVehicleUpdate       = "vehicleUpdate"
)

// TripEvent is the payload of TripStarted and TripCompleted.
type TripEvent struct {
	VehicleID   int64      `json:"vehicleId"`
	TripID      int64      `json:"tripId"`
	RouteID     int64      `json:"routeId"`
	NextRouteID *int64     `json:"nextRouteId,omitempty"`
	Status      TripStatus `json:"status"`
	At          time.Time  `json:"at"`
}

// ProximityEvent is the payload of pickup and dropoff notifications.
type ProximityEvent struct {
	RequestID      int64         `json:"requestId"`
	PassengerID    int64         `json:"passengerId"`
	VehicleID      int64         `json:"vehicleId"`
	Status         RequestStatus `json:"status"`
	DistanceMeters float64       `json:"distanceMeters"`
	At             time.Time     `json:"at"`
}

// Notification is the payload pushed to a user's notification feed.
type Notification struct {
	Title   string    `json:"notif_title"`
	Type    string    `json:"notif_type"`
	Content string    `json:"content"`
	Date    time.Time `json:"notif_date"`
}
