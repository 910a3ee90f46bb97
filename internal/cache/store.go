package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Store is a process-lifetime key/value cache. Entries are never evicted;
// callers own the choice of what to cache.
type Store interface {
	// Get decodes the value for key into dst and reports whether it was present.
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	// Set stores v under key, replacing any existing value.
	Set(ctx context.Context, key string, v interface{}) error
}

// MemoryStore is an in-process Store. Values are stored JSON-encoded so a
// caller can never mutate a cached value through a shared reference.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get implements Store
func (m *MemoryStore) Get(_ context.Context, key string, dst interface{}) (bool, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	return true, nil
}

// Set implements Store
func (m *MemoryStore) Set(_ context.Context, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}

	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

// Len returns the number of cached entries
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Reset drops every entry
func (m *MemoryStore) Reset() {
	m.mu.Lock()
	m.data = make(map[string][]byte)
	m.mu.Unlock()
}
