package numerator

import (
	"context"
	"sync"

	corenumerator "fieldledger/internal/core/numerator"
)

// MemoryStore is a StateStore kept in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]corenumerator.State
	// SaveErr, when set, fails every Save.
	SaveErr error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]corenumerator.State)}
}

// Load implements corenumerator.StateStore.
func (s *MemoryStore) Load(_ context.Context, orgID string, kind corenumerator.Kind) (*corenumerator.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[lockKey(orgID, kind)]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

// Save implements corenumerator.StateStore.
func (s *MemoryStore) Save(_ context.Context, state corenumerator.State) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[lockKey(state.OrgID, state.Kind)] = state
	return nil
}

var _ corenumerator.StateStore = (*MemoryStore)(nil)
