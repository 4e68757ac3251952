package session

import (
	"context"
	"sync"
)

// Store is the per-user ephemeral session state store.
type Store interface {
	// Get returns the stored session, or (nil, nil) when absent.
	Get(ctx context.Context, userID int64) (*Session, error)
	Put(ctx context.Context, userID int64, s *Session) error
	Delete(ctx context.Context, userID int64) error
}

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]*Session)}
}

func (m *MemoryStore) Get(ctx context.Context, userID int64) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, exists := m.sessions[userID]
	if !exists {
		return nil, nil
	}
	clone := *s
	return &clone, nil
}

func (m *MemoryStore) Put(ctx context.Context, userID int64, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *s
	m.sessions[userID] = &clone
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, userID)
	return nil
}
