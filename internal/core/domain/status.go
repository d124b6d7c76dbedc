package domain

// TripStatus is the lifecycle state of a Trip row.
type TripStatus string

const (
	TripActive    TripStatus = "active"
	TripCompleted TripStatus = "completed"
)

// RequestStatus is the lifecycle state of a PassengerRequest.
type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestPickedUp   RequestStatus = "picked_up"
	RequestDroppedOff RequestStatus = "dropped_off"
)

// requestTransitions lists the single legal successor of each status.
var requestTransitions = map[RequestStatus]RequestStatus{
	RequestPending:  RequestPickedUp,
	RequestPickedUp: RequestDroppedOff,
}

// CanTransitionTo reports whether moving from s to next is a legal, forward, one-step move.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	want, ok := requestTransitions[s]
	return ok && want == next
}

// Valid reports whether s is a known request status.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestPickedUp, RequestDroppedOff:
		return true
	}
	return false
}
