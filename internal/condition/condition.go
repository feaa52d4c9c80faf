// Package condition implements the Condition store SE polls:
// an RWMutex-guarded map of externally authored Conditions, independent of
// SE's own per-condition ConditionRuntimeState.
package condition

import (
	"sync"

	"github.com/ttpss930141011/auto-futures-trading-machine/internal/model"
)

// Store is a thread-safe, in-memory Condition repository. SE polls List on
// its evaluation loop rather than being pushed updates, so a Condition
// added or edited externally takes effect on the next poll without SE
// restarting.
type Store struct {
	mu         sync.RWMutex
	conditions map[string]model.Condition
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{conditions: make(map[string]model.Condition)}
}

// List returns a snapshot of all conditions, safe for the caller to range
// over without holding the Store's lock.
func (s *Store) List() []model.Condition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Condition, 0, len(s.conditions))
	for _, c := range s.conditions {
		out = append(out, c)
	}
	return out
}

// Get returns the condition with id, if present.
func (s *Store) Get(id string) (model.Condition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conditions[id]
	return c, ok
}

// Upsert inserts or replaces a Condition.
func (s *Store) Upsert(c model.Condition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conditions[c.ID] = c
}

// Remove deletes a Condition by id. No-op if absent.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conditions, id)
}
