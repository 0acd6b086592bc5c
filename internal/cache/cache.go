// Package cache memoizes expensive query results, keyed by query shape,
// caller scope, and store version. Embedding the version in the key means a
// stale entry can never be served after a mutation: the next read carries
// the bumped version and misses.
package cache

import (
	"context"
	"fmt"
)

// Key identifies one cacheable computation.
type Key struct {
	Shape   string // canonical rendering of the query parameters
	Scope   string // caller scope, from access.Scope.CacheKey
	Version int64  // store version the result is valid for
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|v%d", k.Shape, k.Scope, k.Version)
}

// Cache memoizes computed results. Implementations must never return a
// value computed at a version other than the requested one.
type Cache interface {
	GetOrCompute(ctx context.Context, key Key, compute func(ctx context.Context) (any, error)) (any, error)
}

// GetOrCompute calls through c, degrading to a direct computation when c is
// nil. Batch scripts running outside a serving process pass a nil cache and
// still get correct results.
func GetOrCompute(ctx context.Context, c Cache, key Key, compute func(ctx context.Context) (any, error)) (any, error) {
	if c == nil {
		return compute(ctx)
	}
	return c.GetOrCompute(ctx, key, compute)
}

// Nop computes every time. It is the default for contexts with no cache
// backing.
type Nop struct{}

func (Nop) GetOrCompute(ctx context.Context, _ Key, compute func(ctx context.Context) (any, error)) (any, error) {
	return compute(ctx)
}
