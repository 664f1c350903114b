package engine

import (
	"context"
	"sync"
)

// MemBackend keeps documents in process memory. It is the storage of the
// first in-memory console and of tests.
type MemBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemBackend initializes a backend, optionally with existing documents.
func NewMemBackend(initial map[string][]byte) *MemBackend {
	data := make(map[string][]byte, len(initial))
	for k, v := range initial {
		data[k] = append([]byte(nil), v...)
	}
	return &MemBackend{data: data}
}

func (m *MemBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	val, ok := m.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	// Return a copy to prevent external mutation of the stored document
	return append([]byte(nil), val...), nil
}

func (m *MemBackend) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemBackend) Close() error { return nil }
