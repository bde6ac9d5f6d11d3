package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps encoded records in a map. Records are JSON encoded on
// Put so callers observe the same snapshot semantics as the disk stores.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore 创建内存存储，适用于测试与本地调试。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func (s *MemoryStore) Put(ctx context.Context, collection, key string, record any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k, err := recordKey(collection, key)
	if err != nil {
		return err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.records[string(k)] = data
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, collection, key string, out any) error {
	k, err := recordKey(collection, key)
	if err != nil {
		return err
	}
	s.mu.RLock()
	data, ok := s.records[string(k)]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(data, out)
}

func (s *MemoryStore) Keys(_ context.Context, collection string) ([]string, error) {
	prefix := string(collectionPrefix(collection))
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0)
	for k := range s.records {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, strings.TrimPrefix(k, prefix))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Close() error { return nil }
