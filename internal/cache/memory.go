package cache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Memory is an in-process versioned cache. Entries are invalidated in bulk:
// the first store at a newer version drops everything computed at older
// versions. Contents live for the process lifetime only and are never
// persisted.
type Memory struct {
	mu         sync.RWMutex
	entries    map[string]any
	maxVersion int64

	group singleflight.Group
}

// NewMemory creates an empty cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]any)}
}

// GetOrCompute returns the cached value for key, computing and storing it on
// a miss. Concurrent callers with the same key share one computation.
func (m *Memory) GetOrCompute(ctx context.Context, key Key, compute func(ctx context.Context) (any, error)) (any, error) {
	ks := key.String()

	m.mu.RLock()
	v, ok := m.entries[ks]
	m.mu.RUnlock()
	if ok {
		return v, nil
	}

	v, err, _ := m.group.Do(ks, func() (any, error) {
		m.mu.RLock()
		v, ok := m.entries[ks]
		m.mu.RUnlock()
		if ok {
			return v, nil
		}

		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		m.store(key, ks, v)
		return v, nil
	})
	return v, err
}

func (m *Memory) store(key Key, ks string, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key.Version > m.maxVersion {
		// The store moved on; everything computed earlier is stale.
		m.entries = make(map[string]any)
		m.maxVersion = key.Version
	}
	if key.Version == m.maxVersion {
		m.entries[ks] = v
	}
	// Results for versions older than maxVersion are returned to the caller
	// but not retained.
}

// Len reports the number of live entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
