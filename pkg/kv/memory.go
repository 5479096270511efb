package kv

import "sync"

// MemoryStore keeps values in a map. A positive quota limits the total number
// of value bytes, which mirrors the way browser storage rejects large writes.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	quota  int
	used   int
	closed bool
}

// NewMemoryStore returns an empty store. quota <= 0 means unlimited.
func NewMemoryStore(quota int) *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte), quota: quota}
}

func (m *MemoryStore) Read(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, wrap("memory", "read", key, ErrClosed)
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Write(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return wrap("memory", "write", key, ErrClosed)
	}
	used := m.used - len(m.data[key]) + len(value)
	if m.quota > 0 && used > m.quota {
		return wrap("memory", "write", key, ErrQuotaExceeded)
	}
	m.data[key] = append([]byte(nil), value...)
	m.used = used
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return wrap("memory", "delete", key, ErrClosed)
	}
	m.used -= len(m.data[key])
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
