package kv

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// FileStore keeps one file per key inside a directory. With compression
// enabled values are written zstd-compressed with a ".zst" suffix; reads accept
// either form so toggling compression keeps existing snapshots readable.
type FileStore struct {
	dir      string
	compress bool

	mu      sync.Mutex
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string, compress bool) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	return &FileStore{
		dir:      dir,
		compress: compress,
		encoder:  encoder,
		decoder:  decoder,
	}, nil
}

func (f *FileStore) path(key string, compressed bool) string {
	name := url.PathEscape(key)
	if compressed {
		name += ".zst"
	}
	return filepath.Join(f.dir, name)
}

func (f *FileStore) Read(key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(key, f.compress))
	compressed := f.compress
	if errors.Is(err, fs.ErrNotExist) {
		compressed = !f.compress
		data, err = os.ReadFile(f.path(key, compressed))
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap("file", "read", key, err)
	}

	if !compressed {
		return data, nil
	}
	out, err := f.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, wrap("file", "read", key, fmt.Errorf("decompressing: %w", err))
	}
	return out, nil
}

func (f *FileStore) Write(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data := value
	if f.compress {
		data = f.encoder.EncodeAll(value, nil)
	}

	target := f.path(key, f.compress)
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return wrap("file", "write", key, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return wrap("file", "write", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return wrap("file", "write", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return wrap("file", "write", key, err)
	}

	// Drop the other encoding so a stale copy never shadows this write.
	if err := os.Remove(f.path(key, !f.compress)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return wrap("file", "write", key, err)
	}
	return nil
}

func (f *FileStore) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, compressed := range []bool{false, true} {
		if err := os.Remove(f.path(key, compressed)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return wrap("file", "delete", key, err)
		}
	}
	return nil
}

func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decoder.Close()
	return f.encoder.Close()
}

func ensureDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}
	return nil
}
