package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fintalk-ai/agenthub/internal/model"
)

// MemoryStore is an in-memory Store used when no catalog file is configured
// and throughout the tests.
type MemoryStore struct {
	mu     sync.RWMutex
	agents map[string]model.AgentDescriptor
}

// NewMemoryStore creates an empty in-memory catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{agents: make(map[string]model.AgentDescriptor)}
}

// Put inserts or replaces a descriptor.
func (s *MemoryStore) Put(ctx context.Context, desc model.AgentDescriptor) error {
	if err := desc.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.agents[desc.ID]; ok && desc.CreatedAt.IsZero() {
		desc.CreatedAt = existing.CreatedAt
	} else if desc.CreatedAt.IsZero() {
		desc.CreatedAt = now
	}
	desc.UpdatedAt = now
	s.agents[desc.ID] = desc
	return nil
}

// Get retrieves a descriptor by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (model.AgentDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	desc, ok := s.agents[id]
	if !ok {
		return model.AgentDescriptor{}, ErrNotFound
	}
	return desc, nil
}

// List returns all descriptors, oldest first.
func (s *MemoryStore) List(ctx context.Context) ([]model.AgentDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.AgentDescriptor, 0, len(s.agents))
	for _, desc := range s.agents {
		out = append(out, desc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes a descriptor.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[id]; !ok {
		return ErrNotFound
	}
	delete(s.agents, id)
	return nil
}

// Close is a no-op for the in-memory catalog.
func (s *MemoryStore) Close() error {
	return nil
}
