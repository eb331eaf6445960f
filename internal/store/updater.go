package store

import (
	"context"

	"github.com/Iron-Ham/foundry/internal/errors"
	"github.com/Iron-Ham/foundry/internal/keymutex"
	"github.com/Iron-Ham/foundry/internal/project"
)

// ErrSkipSave may be returned by an UpdateFunc to end the update without
// persisting and without reporting an error.
var ErrSkipSave = errors.New("skip save")

// UpdateFunc mutates p in place. Returning an error aborts the update and
// nothing is saved.
type UpdateFunc func(p *project.Project) error

// Updater serializes read-modify-write cycles per project id on top of a
// Store. Every mutation of pipeline or council state goes through Update so
// that concurrent writers (agents completing, the deadline firing, a human
// reviewing) never lose each other's changes.
//
// Updates are not reentrant: fn must not call Update for the same id.
type Updater struct {
	store Store
	locks *keymutex.Mutex
}

// NewUpdater returns an Updater over s.
func NewUpdater(s Store) *Updater {
	return &Updater{store: s, locks: keymutex.New()}
}

// Store returns the underlying store.
func (u *Updater) Store() Store {
	return u.store
}

// Get reads the latest persisted project without taking the lock.
func (u *Updater) Get(ctx context.Context, id string) (*project.Project, error) {
	return u.store.Get(ctx, id)
}

// Update locks id, loads the latest record, applies fn and saves the result
// before releasing the lock. It returns a copy of the saved project, or the
// unmodified latest record when fn returned ErrSkipSave.
func (u *Updater) Update(ctx context.Context, id string, fn UpdateFunc) (*project.Project, error) {
	unlock, err := u.locks.LockContext(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	p, err := u.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := fn(p); err != nil {
		if errors.Is(err, ErrSkipSave) {
			return u.store.Get(ctx, id)
		}
		return nil, err
	}

	if err := u.store.Save(ctx, p); err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// Create saves a new project under its id's lock.
func (u *Updater) Create(ctx context.Context, p *project.Project) error {
	if err := validateForSave(p); err != nil {
		return err
	}
	unlock, err := u.locks.LockContext(ctx, p.ID)
	if err != nil {
		return err
	}
	defer unlock()
	return u.store.Save(ctx, p)
}
