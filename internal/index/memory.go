package index

import (
	"context"
	"sync"

	"github.com/inboxd/inboxd/internal/domain"
)

// MemoryIndex is the in-memory Index implementation.
type MemoryIndex struct {
	mu     sync.RWMutex
	owners map[string]map[string]domain.RecentEntry // ownerID -> counterpartID -> entry
}

// NewMemoryIndex creates an empty MemoryIndex.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		owners: make(map[string]map[string]domain.RecentEntry),
	}
}

// Upsert implements Index.
func (i *MemoryIndex) Upsert(ctx context.Context, entry domain.RecentEntry) error {
	if err := validateEntry(entry.OwnerID, entry.CounterpartID); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	entries, ok := i.owners[entry.OwnerID]
	if !ok {
		entries = make(map[string]domain.RecentEntry)
		i.owners[entry.OwnerID] = entries
	}

	if prev, ok := entries[entry.CounterpartID]; ok && prev.LastCreatedAt.After(entry.LastCreatedAt) {
		// Stale write: a newer snapshot is already stored.
		return nil
	}
	entries[entry.CounterpartID] = entry
	return nil
}

// Get implements Index.
func (i *MemoryIndex) Get(ctx context.Context, ownerID string) ([]domain.RecentEntry, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	entries := i.owners[ownerID]
	out := make([]domain.RecentEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	return out, nil
}

// Delete implements Index.
func (i *MemoryIndex) Delete(ctx context.Context, ownerID, counterpartID string) error {
	if err := validateEntry(ownerID, counterpartID); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if entries, ok := i.owners[ownerID]; ok {
		delete(entries, counterpartID)
		if len(entries) == 0 {
			delete(i.owners, ownerID)
		}
	}
	return nil
}

var _ Index = (*MemoryIndex)(nil)
