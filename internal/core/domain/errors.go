package domain

import "errors"

var (
	// ErrNotFound is returned by repositories when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrActiveTripExists is returned when a vehicle already has an open trip.
	ErrActiveTripExists = errors.New("vehicle already has an active trip")
	// ErrInvalidTransition is returned for a status change that is not one step forward.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidPosition is returned for coordinates outside the WGS 84 range.
	ErrInvalidPosition = errors.New("invalid position")

	// ErrInvalidStatus is returned for an unknown request status filter.
	ErrInvalidStatus = errors.New("invalid status")
)
