// Package cache provides the key-value cache used for user reads. Values
// are stored JSON-encoded so callers always get copies back.
package cache

import (
	"context"
	"time"
)

// Cache is a key-value store with per-key TTL and glob invalidation.
//
// Get reports (false, nil) on a miss; a non-nil error means the cache could
// not answer and says nothing about whether the record exists.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) error
}
