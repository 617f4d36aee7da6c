// Package capacity bounds how many arbitration sessions may be active at
// once. Acquisition fails fast when the limit is reached; it never blocks.
package capacity

import (
	"context"
	"sync"
)

// SlotStore abstracts the storage for active-session slots. The in-memory
// implementation serves a single instance; the Redis implementation lets
// several instances share one capacity budget.
type SlotStore interface {
	// Acquire reserves a slot for the session if fewer than max are held.
	// Returns false without error when at capacity.
	Acquire(ctx context.Context, sessionID string, max int) (bool, error)
	// Release frees the session's slot. Releasing an unheld slot is a no-op.
	Release(ctx context.Context, sessionID string) error
	// Active returns the number of currently held slots.
	Active(ctx context.Context) (int, error)
}

// InMemorySlotStore is the default single-instance store.
type InMemorySlotStore struct {
	mu    sync.Mutex
	slots map[string]struct{}
}

// NewInMemorySlotStore creates an empty slot store.
func NewInMemorySlotStore() *InMemorySlotStore {
	return &InMemorySlotStore{slots: make(map[string]struct{})}
}

func (s *InMemorySlotStore) Acquire(ctx context.Context, sessionID string, max int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.slots[sessionID]; held {
		return true, nil
	}
	if len(s.slots) >= max {
		return false, nil
	}
	s.slots[sessionID] = struct{}{}
	return true, nil
}

func (s *InMemorySlotStore) Release(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, sessionID)
	return nil
}

func (s *InMemorySlotStore) Active(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots), nil
}

// Clear drops all slots. Test/reset scenarios only.
func (s *InMemorySlotStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = make(map[string]struct{})
}
