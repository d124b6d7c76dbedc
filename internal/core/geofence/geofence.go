// Package geofence decides whether a vehicle is inside a circular boundary,
// using a larger exit radius than entry radius so a vehicle loitering at the
// edge does not flip state on every reading.
package geofence

import (
	"github.com/transiteye/tracker/internal/core/domain"
	"github.com/transiteye/tracker/internal/pkg/geospatial"
)

const (
	DefaultEnterRadius = 150.0 // meters
	DefaultExitBuffer  = 30.0  // meters
)

// Radii configures the hysteresis band.
type Radii struct {
	Enter      float64 // meters; entering requires distance <= Enter
	ExitBuffer float64 // meters added to Enter for leaving
}

// DefaultRadii returns the 150m/30m band.
func DefaultRadii() Radii {
	return Radii{Enter: DefaultEnterRadius, ExitBuffer: DefaultExitBuffer}
}

// Exit is the radius beyond which an inside vehicle is considered outside.
func (r Radii) Exit() float64 {
	return r.Enter + r.ExitBuffer
}

// Evaluate returns the new inside/outside state of vehicle relative to target.
func Evaluate(vehicle, target domain.GeoPoint, inside bool, r Radii) bool {
	return Decide(geospatial.Distance(vehicle, target), inside, r)
}

// Decide applies the hysteresis rule to an already computed distance in meters.
func Decide(distance float64, inside bool, r Radii) bool {
	if inside {
		return distance <= r.Exit()
	}
	return distance <= r.Enter
}
