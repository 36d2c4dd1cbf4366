package cachemanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ReadThroughCache loads missing values through fn and stores them. Concurrent
// misses for one key share a single call to fn. Failed loads are not stored,
// and neither are loads that were still running when their key was dropped
// by Forget or Reset.
type ReadThroughCache[K comparable, V any, I any] struct {
	cache           CacheManager[K, V]
	fn              func(ctx context.Context, input I) (V, error)
	shouldSkipCache bool
	group           singleflight.Group

	mu      sync.Mutex
	loading map[K]*load
}

// load marks one running call to fn. stale is guarded by the cache's mu.
type load struct {
	stale bool
}

func NewReadThroughCache[K comparable, V any, I any](
	cache CacheManager[K, V],
	fn func(ctx context.Context, input I) (V, error),
	shouldSkipCache bool,
) *ReadThroughCache[K, V, I] {
	return &ReadThroughCache[K, V, I]{
		cache:           cache,
		fn:              fn,
		shouldSkipCache: shouldSkipCache,
		loading:         make(map[K]*load),
	}
}

// Get returns the cached value for key or loads it from input. A caller whose
// ctx ends while waiting on another caller's load gets ctx.Err(); the load
// itself still completes and is cached.
func (r *ReadThroughCache[K, V, I]) Get(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	if r.shouldSkipCache {
		return r.fn(ctx, input)
	}

	if value, ok := r.cache.Get(ctx, key); ok {
		return value, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(fmt.Sprint(key), func() (any, error) {
		// A load that finished between the miss above and joining the group
		// has already stored the value.
		if value, ok := r.cache.Get(loadCtx, key); ok {
			return value, nil
		}

		l := r.begin(key)
		defer r.end(key)

		value, err := r.fn(loadCtx, input)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		if !l.stale {
			r.cache.Set(loadCtx, key, value, ttl)
		}
		r.mu.Unlock()
		return value, nil
	})

	var zero V
	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (r *ReadThroughCache[K, V, I]) begin(key K) *load {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := &load{}
	r.loading[key] = l
	return l
}

func (r *ReadThroughCache[K, V, I]) end(key K) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.loading, key)
}

// Forget removes keys from the cache. A load of one of them that is still
// running returns its value to its callers but does not store it.
func (r *ReadThroughCache[K, V, I]) Forget(ctx context.Context, keys ...K) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range keys {
		if l, ok := r.loading[key]; ok {
			l.stale = true
		}
	}
	return r.cache.Delete(ctx, keys...)
}

// Reset empties the cache and keeps every running load from storing its value.
func (r *ReadThroughCache[K, V, I]) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range r.loading {
		l.stale = true
	}
	return r.cache.Flush(ctx)
}
