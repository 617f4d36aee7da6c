// Package precedent maintains the store of past verdicts turned into
// precedents and serves similarity lookups over them.
package precedent

import (
	"context"
	"sync"

	"github.com/Mindburn-Labs/tribune/pkg/contracts"
)

// Store abstracts precedent persistence. Precedents are append-only and
// immutable; a store must never expose a partially constructed precedent,
// each one becomes visible atomically.
type Store interface {
	// Append persists a new precedent.
	Append(ctx context.Context, p *contracts.Precedent) error
	// List returns all precedents, newest first.
	List(ctx context.Context) ([]*contracts.Precedent, error)
	// Count returns the number of stored precedents.
	Count(ctx context.Context) (int, error)
}

// MemoryStore is the default in-process store. Writes replace the slice
// under the write lock (copy-on-write), so readers holding a previously
// returned snapshot never observe mutation.
type MemoryStore struct {
	mu   sync.RWMutex
	data []*contracts.Precedent // newest first
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, p *contracts.Precedent) error {
	cp := *p
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]*contracts.Precedent, 0, len(s.data)+1)
	next = append(next, &cp)
	next = append(next, s.data...)
	s.data = next
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*contracts.Precedent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data), nil
}

// Clear drops all precedents. Test/reset scenarios only.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
}
