package storage

import (
	"context"
	"sync"
)

// MemoryBackend is an in-process Backend with an optional byte quota.
// Subscribers are called synchronously after every write.
type MemoryBackend struct {
	Hub

	mu    sync.RWMutex
	data  map[string]string
	quota int
}

// NewMemoryBackend creates an empty backend. A quota of 0 means unlimited;
// otherwise the summed length of keys and values may not exceed quota bytes.
func NewMemoryBackend(quota int) *MemoryBackend {
	return &MemoryBackend{
		data:  make(map[string]string),
		quota: quota,
	}
}

// Get returns the value at key.
func (m *MemoryBackend) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores value at key.
func (m *MemoryBackend) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	if m.quota > 0 {
		used := m.usedLocked()
		if old, ok := m.data[key]; ok {
			used -= len(key) + len(old)
		}
		if used+len(key)+len(value) > m.quota {
			m.mu.Unlock()
			return ErrQuotaExceeded
		}
	}
	m.data[key] = value
	m.mu.Unlock()

	m.Publish(Change{Key: key, Origin: OriginFrom(ctx)})
	return nil
}

// Delete removes key.
func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	if _, ok := m.data[key]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.data, key)
	m.mu.Unlock()

	m.Publish(Change{Key: key, Deleted: true, Origin: OriginFrom(ctx)})
	return nil
}

// Keys returns the number of stored keys.
func (m *MemoryBackend) Keys() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

func (m *MemoryBackend) usedLocked() int {
	used := 0
	for k, v := range m.data {
		used += len(k) + len(v)
	}
	return used
}

var (
	_ Backend  = (*MemoryBackend)(nil)
	_ Notifier = (*MemoryBackend)(nil)
)
