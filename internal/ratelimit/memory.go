package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps per-key request timestamps in process memory. Suitable
// for a single-node deployment and for tests; a shared deployment should use
// the Redis store instead.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string][]time.Time)}
}

// Allow implements WindowStore with a single mutex; prune, count and record
// happen under one critical section.
func (s *MemoryStore) Allow(_ context.Context, key string, now time.Time, window time.Duration, max int) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-window)
	kept := s.windows[key][:0]
	for _, ts := range s.windows[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	res := Result{Count: len(kept)}
	if len(kept) < max {
		kept = append(kept, now)
		res.Allowed = true
		res.Count = len(kept)
	}
	if len(kept) > 0 {
		res.Oldest = kept[0]
	}

	if len(kept) == 0 {
		// Fully elapsed windows are dropped rather than retained empty.
		delete(s.windows, key)
	} else {
		s.windows[key] = kept
	}
	return res, nil
}

// Len reports the number of tracked keys. Used by tests to observe eviction.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

var _ WindowStore = (*MemoryStore)(nil)
