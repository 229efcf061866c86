package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Mem — in-memory реализация Store для тестов и однопроцессной разработки.
//
// Данные держатся в map под RWMutex; prefix-сканирование идёт по
// отсортированной копии ключей.
type Mem struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMem создаёт пустой in-memory store.
func NewMem() *Mem {
	return &Mem{data: make(map[string][]byte)}
}

// Get возвращает значение по ключу.
func (m *Mem) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put записывает значение по ключу.
func (m *Mem) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.put(key, value)
	return nil
}

func (m *Mem) put(key string, value []byte) {
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
}

// Delete удаляет запись.
func (m *Mem) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	return nil
}

// Commit атомарно применяет батч (под одной блокировкой).
func (m *Mem) Commit(_ context.Context, b *Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range b.ops {
		if o.delete {
			delete(m.data, o.key)
			continue
		}
		m.put(o.key, o.value)
	}
	return nil
}

// Query возвращает записи по префиксу в порядке ключей.
func (m *Mem) Query(_ context.Context, prefix string, offset, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := m.sortedKeys(prefix)

	if offset > len(keys) {
		offset = len(keys)
	}
	keys = keys[offset:]
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		v := m.data[k]
		out := make([]byte, len(v))
		copy(out, v)
		entries = append(entries, Entry{Key: k, Value: out})
	}
	return entries, nil
}

// QueryKeys возвращает ключи по префиксу в порядке ключей.
func (m *Mem) QueryKeys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.sortedKeys(prefix), nil
}

func (m *Mem) sortedKeys(prefix string) []string {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Close — no-op для in-memory store.
func (m *Mem) Close() error {
	return nil
}
