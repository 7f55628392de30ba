// Package memory provides an in-memory GraphStore, used for tests and
// ephemeral serve sessions.
package memory

import (
	"context"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// Store implements ports.GraphStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Graph
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Graph),
	}
}

// Read returns a deep copy so the caller can't mutate store state by pointer.
func (s *Store) Read(ctx context.Context, workspaceID string) (*domain.Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.data[workspaceID]
	if !ok {
		return nil, domain.ErrWorkspaceNotFound
	}
	return g.Clone(), nil
}

// Write stores a deep copy of the graph.
func (s *Store) Write(ctx context.Context, workspaceID string, g *domain.Graph) error {
	copied := g.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[workspaceID] = copied
	return nil
}

// Delete removes the workspace. Unknown ids are a no-op.
func (s *Store) Delete(ctx context.Context, workspaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, workspaceID)
	return nil
}

// List returns the known workspace ids.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}
