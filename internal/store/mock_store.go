// ABOUTME: Mock KV implementation for testing
// ABOUTME: Allows tests to run without SQLite or Redis

package store

import (
	"context"
	"sync"
)

// MockStore is an in-memory KV implementation for testing.
type MockStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]string // namespace -> key -> value

	// Err, when set, is returned by every operation.
	Err error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		entries: make(map[string]map[string]string),
	}
}

// Get retrieves a value.
func (m *MockStore) Get(ctx context.Context, namespace, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return "", m.Err
	}

	v, ok := m.entries[namespace][key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores a value.
func (m *MockStore) Set(ctx context.Context, namespace, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	ns, ok := m.entries[namespace]
	if !ok {
		ns = make(map[string]string)
		m.entries[namespace] = ns
	}
	ns[key] = value
	return nil
}

// Delete removes a value.
func (m *MockStore) Delete(ctx context.Context, namespace, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	delete(m.entries[namespace], key)
	return nil
}

// Ping returns Err.
func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Err
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// Len returns the number of keys held in namespace.
func (m *MockStore) Len(namespace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries[namespace])
}
