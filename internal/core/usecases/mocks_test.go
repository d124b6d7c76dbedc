package usecases_test

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/transiteye/tracker/internal/core/domain"
)

// --- Mock VehicleRepository ---

type mockVehicleRepo struct {
	listFn           func(ctx context.Context) ([]domain.Vehicle, error)
	getByIDFn        func(ctx context.Context, id int64) (*domain.Vehicle, error)
	updatePositionFn func(ctx context.Context, id int64, loc domain.GeoPoint, passengers, added int, at time.Time) error
}

func (m *mockVehicleRepo) List(ctx context.Context) ([]domain.Vehicle, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockVehicleRepo) GetByID(ctx context.Context, id int64) (*domain.Vehicle, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockVehicleRepo) UpdatePosition(ctx context.Context, id int64, loc domain.GeoPoint, passengers, added int, at time.Time) error {
	if m.updatePositionFn != nil {
		return m.updatePositionFn(ctx, id, loc, passengers, added, at)
	}
	return nil
}

// --- Mock RouteRepository ---

type mockRouteRepo struct {
	getByIDFn   func(ctx context.Context, id int64) (*domain.Route, error)
	nextRouteFn func(ctx context.Context, from int64) (int64, bool, error)
}

func (m *mockRouteRepo) GetByID(ctx context.Context, id int64) (*domain.Route, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockRouteRepo) NextRoute(ctx context.Context, from int64) (int64, bool, error) {
	if m.nextRouteFn != nil {
		return m.nextRouteFn(ctx, from)
	}
	return 0, false, nil
}

// --- In-memory GeofenceStateRepository ---

type memStateRepo struct {
	mu     sync.Mutex
	states map[int64]domain.GeofenceState
	getErr error
	putErr error
}

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{states: make(map[int64]domain.GeofenceState)}
}

func (m *memStateRepo) Get(ctx context.Context, vehicleID int64) (*domain.GeofenceState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	s, ok := m.states[vehicleID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (m *memStateRepo) Upsert(ctx context.Context, state *domain.GeofenceState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.states[state.VehicleID] = *state
	return nil
}

// --- In-memory TripRepository ---

type memTripRepo struct {
	mu          sync.Mutex
	nextID      int64
	trips       []domain.Trip
	startErr    error
	completeErr error
	// onComplete sees every committed completion, chain included.
	onComplete func(c domain.TripCompletion)
}

func (m *memTripRepo) ActiveByVehicle(ctx context.Context, vehicleID int64) (*domain.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.trips {
		if m.trips[i].VehicleID == vehicleID && m.trips[i].Status == domain.TripActive {
			t := m.trips[i]
			return &t, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memTripRepo) Start(ctx context.Context, vehicleID int64, at time.Time, loc domain.GeoPoint) (*domain.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return nil, m.startErr
	}
	for _, t := range m.trips {
		if t.VehicleID == vehicleID && t.Status == domain.TripActive {
			return nil, domain.ErrActiveTripExists
		}
	}
	m.nextID++
	t := domain.Trip{ID: m.nextID, VehicleID: vehicleID, StartTime: at, Start: loc, Status: domain.TripActive}
	m.trips = append(m.trips, t)
	return &t, nil
}

func (m *memTripRepo) Complete(ctx context.Context, c domain.TripCompletion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.completeErr != nil {
		return m.completeErr
	}
	for i := range m.trips {
		if m.trips[i].ID == c.TripID && m.trips[i].Status == domain.TripActive {
			at, end := c.At, c.End
			m.trips[i].EndTime = &at
			m.trips[i].End = &end
			m.trips[i].Status = domain.TripCompleted
			if m.onComplete != nil {
				m.onComplete(c)
			}
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memTripRepo) ListActive(ctx context.Context) ([]domain.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Trip
	for _, t := range m.trips {
		if t.Status == domain.TripActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTripRepo) CountCompletedPerVehicle(ctx context.Context, day time.Time) ([]domain.VehicleTripCount, error) {
	return nil, nil
}

func (m *memTripRepo) ActiveVehiclesByHour(ctx context.Context, day time.Time) ([]domain.HourlyActivity, error) {
	return nil, nil
}

func (m *memTripRepo) activeCount(vehicleID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.trips {
		if t.VehicleID == vehicleID && t.EndTime == nil {
			n++
		}
	}
	return n
}

// --- Mock PassengerRequestRepository ---

type mockRequestRepo struct {
	listByStatusFn   func(ctx context.Context, status domain.RequestStatus) ([]domain.PassengerRequest, error)
	markPickedUpFn   func(ctx context.Context, requestID, vehicleID int64, at time.Time) (bool, error)
	markDroppedOffFn func(ctx context.Context, requestID int64, at time.Time) (bool, error)
}

func (m *mockRequestRepo) ListByStatus(ctx context.Context, status domain.RequestStatus) ([]domain.PassengerRequest, error) {
	if m.listByStatusFn != nil {
		return m.listByStatusFn(ctx, status)
	}
	return nil, nil
}

func (m *mockRequestRepo) MarkPickedUp(ctx context.Context, requestID, vehicleID int64, at time.Time) (bool, error) {
	if m.markPickedUpFn != nil {
		return m.markPickedUpFn(ctx, requestID, vehicleID, at)
	}
	return true, nil
}

func (m *mockRequestRepo) MarkDroppedOff(ctx context.Context, requestID int64, at time.Time) (bool, error) {
	if m.markDroppedOffFn != nil {
		return m.markDroppedOffFn(ctx, requestID, at)
	}
	return true, nil
}

// --- Mock VehicleAssignmentRepository ---

type mockCrewRepo struct {
	crewFn func(ctx context.Context, vehicleID int64) ([]int64, error)
}

func (m *mockCrewRepo) CrewForVehicle(ctx context.Context, vehicleID int64) ([]int64, error) {
	if m.crewFn != nil {
		return m.crewFn(ctx, vehicleID)
	}
	return nil, nil
}

// --- Recording EventPublisher ---

type published struct {
	Channel   string
	EventType string
	Payload   any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, channel, eventType string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{Channel: channel, EventType: eventType, Payload: payload})
	return p.err
}

func (p *recordingPublisher) on(channel string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.events {
		if e.Channel == channel {
			out = append(out, e)
		}
	}
	return out
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMockCache() *mockCache { return &mockCache{data: make(map[string][]byte)} }

func (c *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, fmt.Errorf("cache miss: %s", key)
	}
	return v, nil
}

func (c *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *mockCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// --- Geometry helpers ---

// metersPerDegree is one degree of latitude on the haversine sphere.
const metersPerDegree = 6371000 * math.Pi / 180

// north offsets p by meters along its meridian.
func north(p domain.GeoPoint, meters float64) domain.GeoPoint {
	return domain.GeoPoint{Lat: p.Lat + meters/metersPerDegree, Lng: p.Lng}
}

func ptr[T any](v T) *T { return &v }

var fixedNow = time.Date(2024, 3, 4, 8, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }
