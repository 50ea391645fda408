package persistence

import (
	"context"
	"encoding/json"
	"sync"

	"tenant-portal/internal/session/domain/model"
	"tenant-portal/internal/session/domain/repository"
)

// MemoryStore keeps snapshots in process memory. Snapshots are stored
// serialized so callers never share pointers with the store.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryStore creates an empty in-memory snapshot store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string][]byte)}
}

// Load returns the snapshot stored under key
func (m *MemoryStore) Load(ctx context.Context, key string) (*model.Snapshot, error) {
	m.mu.RLock()
	raw, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, repository.ErrSnapshotNotFound
	}
	var snap model.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Save stores snapshot under key
func (m *MemoryStore) Save(ctx context.Context, key string, snapshot *model.Snapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.items[key] = raw
	m.mu.Unlock()
	return nil
}

// Delete removes the snapshot stored under key
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}
