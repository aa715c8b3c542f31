package tracker

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore is an in-process LogStore.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Append(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e.Strategies = slices.Clone(e.Strategies)
	m.entries = append(m.entries, e)
	return nil
}

func (m *MemoryStore) Scan(ctx context.Context, fn func(Entry) error) error {
	m.mu.RLock()
	snapshot := slices.Clone(m.entries)
	m.mu.RUnlock()

	for _, e := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// Entries returns a copy of every entry in append order.
func (m *MemoryStore) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.entries)
}
