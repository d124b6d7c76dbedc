package ports

import "context"

// EventPublisher is the best-effort real-time broadcaster.
type EventPublisher interface {
	Publish(ctx context.Context, channel, eventType string, payload any) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
