package infrastructure

import (
	"context"
	"encoding/json"
	"sync"

	"glimmer/internal/service/checkout/domain"
)

// MemorySessionStore 本地开发用的进程内实现，按 JSON 存储以保证与 Redis 实现行为一致
type MemorySessionStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{data: make(map[string][]byte)}
}

func (s *MemorySessionStore) Load(_ context.Context, sessionID string) (domain.SessionRecords, error) {
	s.mu.RLock()
	raw, ok := s.data[sessionID]
	s.mu.RUnlock()

	var rec domain.SessionRecords
	if !ok {
		return rec, nil
	}
	err := json.Unmarshal(raw, &rec)
	return rec, err
}

func (s *MemorySessionStore) Save(_ context.Context, sessionID string, rec domain.SessionRecords) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[sessionID] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.data, sessionID)
	s.mu.Unlock()
	return nil
}
