package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryStore implements Store using in-memory storage
type MemoryStore struct {
	logger *zap.Logger
	mu     sync.RWMutex
	metas  map[string]*Meta
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory session store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		logger: logger.Named("session.store.memory"),
		metas:  make(map[string]*Meta),
	}
}

// Register implements Store.Register
func (s *MemoryStore) Register(_ context.Context, meta *Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := *meta
	m.UpdatedAt = time.Now()
	s.metas[meta.ID] = &m
	return nil
}

// Get implements Store.Get
func (s *MemoryStore) Get(_ context.Context, id string) (*Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.metas[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	m := *meta
	return &m, nil
}

// Unregister implements Store.Unregister
func (s *MemoryStore) Unregister(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.metas[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.metas, id)
	return nil
}

// List implements Store.List, oldest session first
func (s *MemoryStore) List(_ context.Context) ([]*Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metas := make([]*Meta, 0, len(s.metas))
	for _, meta := range s.metas {
		m := *meta
		metas = append(metas, &m)
	}
	sort.Slice(metas, func(i, j int) bool {
		if metas[i].CreatedAt.Equal(metas[j].CreatedAt) {
			return metas[i].ID < metas[j].ID
		}
		return metas[i].CreatedAt.Before(metas[j].CreatedAt)
	})
	return metas, nil
}
