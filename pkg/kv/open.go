package kv

import (
	"fmt"
	"path/filepath"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	// Dir is the storage directory for the file, sqlite and badger backends.
	Dir string
	// Compress enables zstd compression for the file backend.
	Compress bool
	// Quota caps the memory backend in bytes (0 = unlimited).
	Quota int
}

// Open returns the store described by opts. An empty backend means "file".
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case BackendMemory:
		return NewMemoryStore(opts.Quota), nil
	case "", BackendFile:
		return NewFileStore(filepath.Join(opts.Dir, "cache"), opts.Compress)
	case BackendSQLite:
		if err := ensureDir(opts.Dir); err != nil {
			return nil, err
		}
		return NewSQLiteStore(filepath.Join(opts.Dir, "cache.db"))
	case BackendBadger:
		return NewBadgerStore(filepath.Join(opts.Dir, "badger"))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}
