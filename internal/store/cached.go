package store

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Iron-Ham/foundry/internal/project"
)

// CachedStore fronts another Store with a fixed-size LRU of recently used
// projects. It is write-through: Save updates the backend first and the
// cache only on success. It assumes it is the only writer to the backend.
type CachedStore struct {
	backend Store
	cache   *lru.Cache[string, *project.Project]
}

// NewCachedStore wraps backend with an LRU holding up to size projects.
func NewCachedStore(backend Store, size int) (*CachedStore, error) {
	cache, err := lru.New[string, *project.Project](size)
	if err != nil {
		return nil, fmt.Errorf("create project cache: %w", err)
	}
	return &CachedStore{backend: backend, cache: cache}, nil
}

// Get implements Store.
func (s *CachedStore) Get(ctx context.Context, id string) (*project.Project, error) {
	if p, ok := s.cache.Get(id); ok {
		return p.Clone(), nil
	}
	p, err := s.backend.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Add(id, p.Clone())
	return p, nil
}

// Save implements Store.
func (s *CachedStore) Save(ctx context.Context, p *project.Project) error {
	if err := validateForSave(p); err != nil {
		return err
	}
	if err := s.backend.Save(ctx, p); err != nil {
		s.cache.Remove(p.ID)
		return err
	}
	s.cache.Add(p.ID, p.Clone())
	return nil
}

// List implements Store. It always reads the backend.
func (s *CachedStore) List(ctx context.Context) ([]*project.Project, error) {
	return s.backend.List(ctx)
}

// Len returns the number of cached projects.
func (s *CachedStore) Len() int {
	return s.cache.Len()
}

// Close closes the backend if it holds resources.
func (s *CachedStore) Close() error {
	s.cache.Purge()
	if c, ok := s.backend.(Closer); ok {
		return c.Close()
	}
	return nil
}
