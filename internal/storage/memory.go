package storage

import (
	"context"
	"sync"
)

// memoryStore is the default backend when no sqlite path is configured.
// State lives for the process lifetime only; triggers are idempotent on
// replay, so losing it is acceptable.
type memoryStore struct {
	mu      sync.RWMutex
	modules map[string][]byte
	chars   map[string]map[string][]byte // charID -> module -> data
}

func NewMemory() Store {
	return &memoryStore{
		modules: map[string][]byte{},
		chars:   map[string]map[string][]byte{},
	}
}

func (m *memoryStore) GetModule(_ context.Context, module string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.modules[module]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp, true, nil
}

func (m *memoryStore) PutModule(_ context.Context, module string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.mu.Lock()
	m.modules[module] = cp
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) GetCharacter(_ context.Context, charID, module string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byModule, ok := m.chars[charID]
	if !ok {
		return nil, false, nil
	}
	b, ok := byModule[module]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp, true, nil
}

func (m *memoryStore) PutCharacter(_ context.Context, charID, module string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.mu.Lock()
	if m.chars[charID] == nil {
		m.chars[charID] = map[string][]byte{}
	}
	m.chars[charID][module] = cp
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) DeleteCharacter(_ context.Context, charID string) error {
	m.mu.Lock()
	delete(m.chars, charID)
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Close() error { return nil }
