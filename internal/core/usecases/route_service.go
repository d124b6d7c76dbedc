package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/transiteye/tracker/internal/core/domain"
	"github.com/transiteye/tracker/internal/core/ports"
)

// DefaultRouteTTL is the cache lifetime of route records, in seconds.
const DefaultRouteTTL = 300

// RouteService is a read-through cache in front of a RouteRepository.
// Routes and their mappings are read-only to the tracker, so entries only expire.
type RouteService struct {
	routes ports.RouteRepository
	cache  ports.CacheService
	ttl    int
}

var _ ports.RouteRepository = (*RouteService)(nil)

// NewRouteService creates a new RouteService. cache may be nil.
func NewRouteService(routes ports.RouteRepository, cache ports.CacheService, ttlSeconds int) *RouteService {
	if ttlSeconds <= 0 {
		ttlSeconds = DefaultRouteTTL
	}
	return &RouteService{routes: routes, cache: cache, ttl: ttlSeconds}
}

type nextRoute struct {
	To int64 `json:"to"`
	OK bool  `json:"ok"`
}

// GetByID returns a single route. Missing routes are not cached.
func (s *RouteService) GetByID(ctx context.Context, id int64) (*domain.Route, error) {
	cacheKey := fmt.Sprintf("routes:id:%d", id)
	var route domain.Route
	if s.get(ctx, cacheKey, &route) {
		return &route, nil
	}

	r, err := s.routes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.set(ctx, cacheKey, r)
	return r, nil
}

// NextRoute returns the mapped successor of fromRouteID.
func (s *RouteService) NextRoute(ctx context.Context, fromRouteID int64) (int64, bool, error) {
	cacheKey := fmt.Sprintf("routes:next:%d", fromRouteID)
	var cached nextRoute
	if s.get(ctx, cacheKey, &cached) {
		return cached.To, cached.OK, nil
	}

	to, ok, err := s.routes.NextRoute(ctx, fromRouteID)
	if err != nil {
		return 0, false, err
	}
	s.set(ctx, cacheKey, nextRoute{To: to, OK: ok})
	return to, ok, nil
}

func (s *RouteService) get(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *RouteService) set(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = s.cache.Set(ctx, key, data, s.ttl)
	}
}
