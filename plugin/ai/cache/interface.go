// Package cache memoizes query embeddings in process and, optionally, in Redis.
package cache

import (
	"context"
	"time"
)

// CacheService is a shared byte cache backing the in-process vector cache.
type CacheService interface {
	// Get retrieves a value from cache.
	// Returns: value, whether it exists
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores a value in cache.
	// ttl: expiration time, zero means the implementation default
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
