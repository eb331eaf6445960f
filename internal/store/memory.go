package store

import (
	"context"
	"sync"

	"github.com/Iron-Ham/foundry/internal/errors"
	"github.com/Iron-Ham/foundry/internal/project"
)

// MemoryStore keeps projects in a map. It is used by tests and by the
// "memory" backend for throwaway sessions.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]*project.Project
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{projects: make(map[string]*project.Project)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, errors.NewProjectNotFound(id)
	}
	return p.Clone(), nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, p *project.Project) error {
	if err := validateForSave(p); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[p.ID] = p.Clone()
	return nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context) ([]*project.Project, error) {
	s.mu.RLock()
	out := make([]*project.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p.Clone())
	}
	s.mu.RUnlock()

	sortProjects(out)
	return out, nil
}
