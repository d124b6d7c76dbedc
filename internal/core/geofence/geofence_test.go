package geofence_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/transiteye/tracker/internal/core/domain"
	"github.com/transiteye/tracker/internal/core/geofence"
)

// north returns p moved the given meters along its meridian.
func north(p domain.GeoPoint, meters float64) domain.GeoPoint {
	return domain.GeoPoint{Lat: p.Lat + meters/(6371000*math.Pi/180), Lng: p.Lng}
}

var terminal = domain.GeoPoint{Lat: 13.9538, Lng: 121.1622}

func TestDecide_Hysteresis(t *testing.T) {
	r := geofence.DefaultRadii()
	assert.Equal(t, 180.0, r.Exit())

	cases := []struct {
		name     string
		distance float64
		inside   bool
		want     bool
	}{
		{"inside stays inside within exit radius", 160, true, true},
		{"outside stays outside beyond enter radius", 160, false, false},
		{"outside enters at enter radius", 150, false, true},
		{"outside enters well inside", 10, false, true},
		{"inside stays at exit radius", 180, true, true},
		{"inside leaves past exit radius", 180.5, true, false},
		{"outside stays far away", 5000, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, geofence.Decide(tc.distance, tc.inside, r))
		})
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	r := geofence.DefaultRadii()
	for _, d := range []float64{0, 100, 149, 151, 170, 179, 181, 400} {
		for _, inside := range []bool{true, false} {
			pos := north(terminal, d)
			first := geofence.Evaluate(pos, terminal, inside, r)
			for i := 0; i < 5; i++ {
				if got := geofence.Evaluate(pos, terminal, inside, r); got != first {
					t.Fatalf("distance %.0f inside=%v: flipped to %v on call %d", d, inside, got, i)
				}
			}
		}
	}
}

func TestEvaluate_LoiteringDoesNotFlap(t *testing.T) {
	r := geofence.DefaultRadii()
	state := false

	// Approach, then oscillate between 140m and 175m.
	path := []float64{400, 200, 140, 175, 140, 175, 140, 175}
	transitions := 0
	for _, d := range path {
		next := geofence.Evaluate(north(terminal, d), terminal, state, r)
		if next != state {
			transitions++
		}
		state = next
	}
	assert.True(t, state)
	assert.Equal(t, 1, transitions)

	// Leaving past the exit radius flips once.
	state = geofence.Evaluate(north(terminal, 200), terminal, state, r)
	assert.False(t, state)
}

func TestEvaluate_CustomRadii(t *testing.T) {
	r := geofence.Radii{Enter: 50, ExitBuffer: 10}
	assert.False(t, geofence.Evaluate(north(terminal, 55), terminal, false, r))
	assert.True(t, geofence.Evaluate(north(terminal, 55), terminal, true, r))
	assert.False(t, geofence.Evaluate(north(terminal, 61), terminal, true, r))
}
