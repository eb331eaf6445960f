package store

import (
	"fmt"

	"github.com/Iron-Ham/foundry/internal/config"
)

// Open builds the Store selected by cfg, wrapped in a CachedStore when
// cfg.CacheSize is positive.
func Open(cfg config.StoreConfig) (Store, error) {
	var backend Store
	switch cfg.Backend {
	case "", "file":
		fs, err := NewFileStore(cfg.ResolveDir())
		if err != nil {
			return nil, err
		}
		backend = fs
	case "sqlite":
		ss, err := OpenSQLite(cfg.ResolveSQLitePath())
		if err != nil {
			return nil, err
		}
		backend = ss
	case "memory":
		// Caching a memory store only doubles the copies.
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	if cfg.CacheSize <= 0 {
		return backend, nil
	}
	return NewCachedStore(backend, cfg.CacheSize)
}

// Close closes s if it holds resources.
func Close(s Store) error {
	if c, ok := s.(Closer); ok {
		return c.Close()
	}
	return nil
}
