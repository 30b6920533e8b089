package store

import (
	"sync"

	"github.com/dkotov/pricefeed/internal/model"
)

// Store holds the most recent tick per key. Safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	ticks map[model.Key]model.Tick
}

// New creates an empty store.
func New() *Store {
	return &Store{
		ticks: make(map[model.Key]model.Tick),
	}
}

// Merge applies a tick if it is at least as new as the stored one.
// Returns true when the tick was accepted.
func (s *Store) Merge(t model.Tick) bool {
	key := t.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.ticks[key]; ok && t.EventTimeMs < prev.EventTimeMs {
		return false
	}
	s.ticks[key] = t
	return true
}

// Read returns the stored tick for key, if any.
func (s *Store) Read(key model.Key) (model.Tick, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.ticks[key]
	return t, ok
}

// Snapshot copies every stored tick. Order is unspecified.
func (s *Store) Snapshot() []model.Tick {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Tick, 0, len(s.ticks))
	for _, t := range s.ticks {
		out = append(out, t)
	}
	return out
}

// Len reports the number of distinct keys held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.ticks)
}
