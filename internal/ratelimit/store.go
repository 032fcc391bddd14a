package ratelimit

import (
	"sync"
	"time"
)

// State is the last observed quota snapshot for one endpoint key.
type State struct {
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// ResetAtEpochMs returns the reset instant as epoch milliseconds.
func (s State) ResetAtEpochMs() int64 {
	return s.ResetAt.UnixMilli()
}

// Store maps endpoint keys to their last known quota snapshot.
//
// Entries are created lazily by the first response carrying a complete set of
// quota headers and overwritten on every later observation. Nothing is ever
// evicted: the number of keys is bounded by the API surface. Nothing is
// persisted either, the data is an advisory estimate.
//
// Concurrent requests read and write the same store. Writes are
// last-writer-wins; a stale estimate only affects pacing, never results.
type Store struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewStore creates an empty store. Services for independent backends should
// each get their own store.
func NewStore() *Store {
	return &Store{states: make(map[string]State)}
}

// Get returns the snapshot for key, if one has been recorded.
func (s *Store) Get(key string) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[key]
	return st, ok
}

// Set records a snapshot for key, replacing any previous one.
func (s *Store) Set(key string, st State) {
	s.mu.Lock()
	s.states[key] = st
	s.mu.Unlock()
}

// Len returns the number of tracked endpoint keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// Snapshot returns a copy of every tracked entry.
func (s *Store) Snapshot() map[string]State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]State, len(s.states))
	for k, v := range s.states {
		out[k] = v
	}
	return out
}
