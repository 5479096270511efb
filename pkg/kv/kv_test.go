package kv

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func openBackends(t *testing.T) map[string]Store {
	t.Helper()
	stores := map[string]Store{
		"memory": NewMemoryStore(0),
	}

	for _, opts := range []Options{
		{Backend: BackendFile, Dir: t.TempDir()},
		{Backend: BackendFile, Dir: t.TempDir(), Compress: true},
		{Backend: BackendSQLite, Dir: t.TempDir()},
		{Backend: BackendBadger, Dir: t.TempDir()},
	} {
		s, err := Open(opts)
		if err != nil {
			t.Fatalf("open %s: %v", opts.Backend, err)
		}
		name := opts.Backend
		if opts.Compress {
			name += "+zstd"
		}
		stores[name] = s
	}

	t.Cleanup(func() {
		for name, s := range stores {
			if err := s.Close(); err != nil {
				t.Errorf("close %s: %v", name, err)
			}
		}
	})
	return stores
}

func TestBackendsRoundTrip(t *testing.T) {
	for name, s := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Read("mithrilSearchCache"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound on empty store, got %v", err)
			}

			payload := []byte(`{"data":{},"updated":1}`)
			if err := s.Write("mithrilSearchCache", payload); err != nil {
				t.Fatalf("write: %v", err)
			}
			got, err := s.Read("mithrilSearchCache")
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Fatalf("read %q, want %q", got, payload)
			}

			if err := s.Write("mithrilSearchCache", []byte("v2")); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			got, _ = s.Read("mithrilSearchCache")
			if string(got) != "v2" {
				t.Fatalf("overwrite not visible, got %q", got)
			}

			if err := s.Delete("mithrilSearchCache"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := s.Delete("mithrilSearchCache"); err != nil {
				t.Fatalf("second delete should be a no-op: %v", err)
			}
			if _, err := s.Read("mithrilSearchCache"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound after delete, got %v", err)
			}
		})
	}
}

func TestMemoryQuota(t *testing.T) {
	s := NewMemoryStore(8)
	if err := s.Write("a", []byte("12345")); err != nil {
		t.Fatalf("write within quota: %v", err)
	}
	err := s.Write("b", []byte("12345"))
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	var se *StorageError
	if !errors.As(err, &se) || se.Op != "write" || se.Key != "b" {
		t.Fatalf("expected StorageError for write b, got %#v", err)
	}
	// Replacing a value only counts the difference.
	if err := s.Write("a", []byte("1234567")); err != nil {
		t.Fatalf("replacement within quota: %v", err)
	}
}

func TestMemoryClosed(t *testing.T) {
	s := NewMemoryStore(0)
	s.Close()
	if _, err := s.Read("x"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestFileStoreReadsOtherEncoding(t *testing.T) {
	dir := t.TempDir()
	plain, err := NewFileStore(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	defer plain.Close()
	if err := plain.Write("nocache", []byte("1")); err != nil {
		t.Fatal(err)
	}

	compressed, err := NewFileStore(dir, true)
	if err != nil {
		t.Fatal(err)
	}
	defer compressed.Close()
	got, err := compressed.Read("nocache")
	if err != nil || string(got) != "1" {
		t.Fatalf("compressed store should read plain file, got %q, %v", got, err)
	}

	if err := compressed.Write("nocache", []byte("2")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "nocache")); !os.IsNotExist(err) {
		t.Fatalf("plain copy should be removed after compressed write, stat err = %v", err)
	}
	got, _ = plain.Read("nocache")
	if string(got) != "2" {
		t.Fatalf("plain store should read compressed file, got %q", got)
	}
}

func TestFileStoreCorruptCompressed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "mithrilSearchCache.zst"), []byte("not zstd"), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := NewFileStore(dir, true)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	_, err = s.Read("mithrilSearchCache")
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError for corrupt data, got %v", err)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(Options{Backend: "redis"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestSQLiteMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Write("k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Reopening must not re-run applied migrations or lose data.
	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM migrations`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	available, err := availableMigrations()
	if err != nil {
		t.Fatal(err)
	}
	if n != len(available) || n < 2 {
		t.Fatalf("expected %d applied migrations, got %d", len(available), n)
	}
	got, err := s.Read("k")
	if err != nil || string(got) != "v" {
		t.Fatalf("value lost across reopen: %q, %v", got, err)
	}
}
