// Package keymutex provides a mutex keyed by string.
//
// Each key gets its own lock; holders of different keys never contend.
// Entries are reference counted and dropped once the last holder or waiter
// releases them, so the map only grows with the number of keys in use.
//
//	var locks keymutex.Mutex
//	unlock := locks.Lock("project-1")
//	defer unlock()
//
// The zero value is ready to use. A Mutex must not be copied after first use.
package keymutex

import (
	"context"
	"sync"
)

type entry struct {
	// sem has capacity 1; holding the token means holding the key.
	sem  chan struct{}
	refs int
}

// Mutex serializes critical sections per key.
type Mutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty Mutex.
func New() *Mutex {
	return &Mutex{}
}

// acquire registers interest in key and returns its entry.
func (m *Mutex) acquire(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = make(map[string]*entry)
	}
	e, ok := m.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	return e
}

// release drops interest in key, deleting the entry when unused.
func (m *Mutex) release(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

// Lock blocks until key is held and returns the function that releases it.
// The returned function is safe to call more than once.
func (m *Mutex) Lock(key string) (unlock func()) {
	e := m.acquire(key)
	e.sem <- struct{}{}
	return m.unlocker(key, e)
}

// LockContext is like Lock but gives up when ctx is done.
func (m *Mutex) LockContext(ctx context.Context, key string) (unlock func(), err error) {
	e := m.acquire(key)
	select {
	case e.sem <- struct{}{}:
		return m.unlocker(key, e), nil
	case <-ctx.Done():
		m.release(key, e)
		return nil, ctx.Err()
	}
}

func (m *Mutex) unlocker(key string, e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			m.release(key, e)
		})
	}
}

// Len returns the number of keys currently held or awaited.
func (m *Mutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
