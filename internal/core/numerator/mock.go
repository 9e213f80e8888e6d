package numerator

import (
	"context"
	"sync"
)

// MockAllocator is a test implementation of Allocator.
// Without AllocateFunc it returns a placeholder, as an offline device would.
type MockAllocator struct {
	AllocateFunc func(ctx context.Context, orgID string, kind Kind) (string, error)

	mu    sync.Mutex
	calls int
}

// AllocateFinalNumber implements Allocator.
func (m *MockAllocator) AllocateFinalNumber(ctx context.Context, orgID string, kind Kind) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.AllocateFunc != nil {
		return m.AllocateFunc(ctx, orgID, kind)
	}
	return Placeholder(), nil
}

// Calls returns how many allocations were requested.
func (m *MockAllocator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Ensure compile-time interface compliance.
var _ Allocator = (*MockAllocator)(nil)
