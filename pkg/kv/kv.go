// Package kv is the durability port of the result cache: a tiny key/value
// store interface with interchangeable backends (memory, files, SQLite and
// Badger). The cache treats every backend as best effort.
package kv

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Read when the key has no value.
	ErrNotFound = errors.New("key not found")
	// ErrQuotaExceeded is returned by Write when a size-limited store is full.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
)

// Store persists opaque values under string keys.
type Store interface {
	// Read returns the value stored under key or ErrNotFound.
	Read(key string) ([]byte, error)
	// Write stores value under key, replacing any previous value.
	Write(key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
	Close() error
}

// StorageError wraps a backend failure with the operation and key involved.
type StorageError struct {
	Backend string
	Op      string
	Key     string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s %q: %v", e.Backend, e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func wrap(backend, op, key string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Backend: backend, Op: op, Key: key, Err: err}
}
