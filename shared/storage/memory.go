package storage

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore keeps documents as encoded JSON in process memory. Values are
// stored encoded so callers never share mutable state with the store.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Load(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(key, dest)
}

func (m *MemoryStore) Save(ctx context.Context, key string, value interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(key, value)
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, key string, dest interface{}, fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	resetDest(dest)
	if err := m.load(key, dest); err != nil && err != ErrNotFound {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return m.save(key, dest)
}

func (m *MemoryStore) load(key string, dest interface{}) error {
	raw, ok := m.data[key]
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, dest)
}

func (m *MemoryStore) save(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}
