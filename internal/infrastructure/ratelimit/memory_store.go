package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps call logs in process memory. It suits single-instance
// deployments and tests; each instance starts empty.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string][]time.Time
}

// NewMemoryStore creates an empty in-memory window store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]time.Time)}
}

// Count returns the number of calls for key after since, dropping older entries
func (s *MemoryStore) Count(_ context.Context, key string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.prune(key, since)
	return len(kept), nil
}

// Add records a call at the given time
func (s *MemoryStore) Add(_ context.Context, key string, at time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune(key, at.Add(-ttl))
	s.entries[key] = append(s.entries[key], at)
	return nil
}

// prune drops entries at or before cutoff. Callers hold s.mu.
func (s *MemoryStore) prune(key string, cutoff time.Time) []time.Time {
	entries := s.entries[key]
	kept := entries[:0]
	for _, at := range entries {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	if len(kept) == 0 {
		delete(s.entries, key)
		return nil
	}
	s.entries[key] = kept
	return kept
}

var _ WindowStore = (*MemoryStore)(nil)
