package services

import (
	"context"
	"sync"
)

// MemoryStore is an in-process KVStore for tests and single-node
// deployments. Operations hold one mutex, which makes HSetNX atomic with
// respect to the existence check.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]map[string][]byte)}
}

func (ms *MemoryStore) table(name string) map[string][]byte {
	t, ok := ms.tables[name]
	if !ok {
		t = make(map[string][]byte)
		ms.tables[name] = t
	}
	return t
}

func (ms *MemoryStore) HGet(_ context.Context, table, key string) ([]byte, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	val, ok := ms.tables[table][key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (ms *MemoryStore) HSet(_ context.Context, table, key string, value []byte) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	ms.table(table)[key] = stored
	return nil
}

func (ms *MemoryStore) HSetNX(_ context.Context, table, key string, value []byte) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	t := ms.table(table)
	if _, ok := t[key]; ok {
		return ErrKeyExists
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	t[key] = stored
	return nil
}

func (ms *MemoryStore) HDel(_ context.Context, table, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.tables[table], key)
	return nil
}

func (ms *MemoryStore) HLen(_ context.Context, table string) (int, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.tables[table]), nil
}

func (ms *MemoryStore) HGetAll(_ context.Context, table string) (map[string][]byte, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	out := make(map[string][]byte, len(ms.tables[table]))
	for k, v := range ms.tables[table] {
		val := make([]byte, len(v))
		copy(val, v)
		out[k] = val
	}
	return out, nil
}
