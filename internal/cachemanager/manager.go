// Package cachemanager provides keyed in-memory caches used by the query executor.
package cachemanager

import (
	"context"
	"time"
)

// CacheManager stores values by key with an optional per-entry TTL.
type CacheManager[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...K) error
	Flush(ctx context.Context) error
	Len(ctx context.Context) int
}
