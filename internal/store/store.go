// Package store persists project records.
//
// Every [Store] hands out deep copies: a *project.Project returned by Get or
// List is owned by the caller and never aliased by the store. Stores give a
// single caller read-your-writes consistency and nothing more; read-modify-
// write sequences that may race (council agents completing at the same
// moment) go through an [Updater], which serializes them per project.
package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/Iron-Ham/foundry/internal/project"
)

// Store loads and saves project records by id.
type Store interface {
	// Get returns the project with the given id, or an error matching
	// errors.ErrProjectNotFound.
	Get(ctx context.Context, id string) (*project.Project, error)
	// Save inserts or replaces the project.
	Save(ctx context.Context, p *project.Project) error
	// List returns every project, most recently updated first.
	List(ctx context.Context) ([]*project.Project, error)
}

// Closer is implemented by stores holding OS resources.
type Closer interface {
	Close() error
}

// sortProjects orders projects most recently updated first, then by id.
func sortProjects(ps []*project.Project) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].UpdatedAt.Equal(ps[j].UpdatedAt) {
			return ps[i].UpdatedAt.After(ps[j].UpdatedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}

func validateForSave(p *project.Project) error {
	if p == nil {
		return fmt.Errorf("save: nil project")
	}
	if p.ID == "" {
		return fmt.Errorf("save: project has no id")
	}
	return nil
}
