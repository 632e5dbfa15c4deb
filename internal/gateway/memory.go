package gateway

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Gateway used by tests and ephemeral runs.
type Memory struct {
	mu      sync.RWMutex
	records map[string]map[string][]byte
}

// NewMemory returns an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, userID, recordType string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.records[userID][recordType]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Set(_ context.Context, userID, recordType string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.records[userID]
	if !ok {
		user = make(map[string][]byte)
		m.records[userID] = user
	}
	user[recordType] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Keys(_ context.Context, userID, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys []string
	for k := range m.records[userID] {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
