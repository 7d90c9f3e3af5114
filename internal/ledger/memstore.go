package ledger

import (
	"context"
	"sync"
)

// MemoryStore keeps the ledger in process memory. Used by tests and the
// "memory" backend.
type MemoryStore struct {
	mu     sync.Mutex
	ledger *Ledger
	saves  int
}

func NewMemoryStore(seed *Ledger) *MemoryStore {
	if seed == nil {
		seed = New()
	}
	return &MemoryStore{ledger: seed.Clone()}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Load(_ context.Context) (*Ledger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, l *Ledger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger = l.Clone()
	m.saves++
	return nil
}

// Saves reports how many times Save succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
