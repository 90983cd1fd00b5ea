package store_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"

	"github.com/jacentio/lattice/store"
)

// backends lists every locally-runnable backend under one conformance
// suite. Dynamo and GCS share the same contract but need live services;
// they are covered by the e2e package.
func backends(t *testing.T) map[string]store.Store {
	t.Helper()

	local, err := store.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	badgerStore, err := store.OpenBadger(store.Config{BadgerInMemory: true}, nil)
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { badgerStore.Close() })

	return map[string]store.Store{
		"memory": store.NewMemory(),
		"local":  local,
		"badger": badgerStore,
	}
}

func TestSetGet(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Set(ctx, "a/meta.json", []byte("hello")); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, err := s.Get(ctx, "a/meta.json")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if !bytes.Equal(got, []byte("hello")) {
				t.Errorf("Get = %q, want %q", got, "hello")
			}

			// Overwrite is idempotent create-or-replace.
			if err := s.Set(ctx, "a/meta.json", []byte("world")); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}
			got, _ = s.Get(ctx, "a/meta.json")
			if !bytes.Equal(got, []byte("world")) {
				t.Errorf("Get after overwrite = %q, want %q", got, "world")
			}
		})
	}
}

func TestGetNotFound(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("Get = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Set(ctx, "k", []byte("v")); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := s.Delete(ctx, "k"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := s.Get(ctx, "k"); !errors.Is(err, store.ErrNotFound) {
				t.Errorf("Get after delete = %v, want ErrNotFound", err)
			}
			// Deleting an absent key is a no-op.
			if err := s.Delete(ctx, "k"); err != nil {
				t.Errorf("Delete absent = %v, want nil", err)
			}
		})
	}
}

func TestDeletePrefix(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seed := map[string]string{
				"g1/meta.json":     "g",
				"g1/arr/meta.json": "a",
				"g1/arr/c/0/0":     "x",
				"g1/arr/c/1/0":     "y",
				"g2/meta.json":     "g",
			}
			for k, v := range seed {
				if err := s.Set(ctx, k, []byte(v)); err != nil {
					t.Fatalf("Set %q: %v", k, err)
				}
			}

			if err := s.DeletePrefix(ctx, "g1/arr/"); err != nil {
				t.Fatalf("DeletePrefix: %v", err)
			}

			keys, err := store.SortedKeys(ctx, s, "")
			if err != nil {
				t.Fatalf("SortedKeys: %v", err)
			}
			expected := []string{"g1/meta.json", "g2/meta.json"}
			if !reflect.DeepEqual(keys, expected) {
				t.Errorf("keys = %v, want %v", keys, expected)
			}
		})
	}
}

func TestListPrefix(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"a/meta.json", "a/b/meta.json", "ab/meta.json", "z"} {
				if err := s.Set(ctx, k, []byte("v")); err != nil {
					t.Fatalf("Set %q: %v", k, err)
				}
			}

			tests := []struct {
				prefix   string
				expected []string
			}{
				{"", []string{"a/b/meta.json", "a/meta.json", "ab/meta.json", "z"}},
				{"a/", []string{"a/b/meta.json", "a/meta.json"}},
				{"a", []string{"a/b/meta.json", "a/meta.json", "ab/meta.json"}},
				{"nope/", nil},
			}
			for _, tt := range tests {
				keys, err := store.SortedKeys(ctx, s, tt.prefix)
				if err != nil {
					t.Fatalf("SortedKeys(%q): %v", tt.prefix, err)
				}
				if len(keys) == 0 && len(tt.expected) == 0 {
					continue
				}
				if !reflect.DeepEqual(keys, tt.expected) {
					t.Errorf("ListPrefix(%q) = %v, want %v", tt.prefix, keys, tt.expected)
				}
			}
		})
	}
}

func TestExists(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Set(ctx, "present", []byte("v")); err != nil {
				t.Fatalf("Set: %v", err)
			}
			ok, err := s.Exists(ctx, "present")
			if err != nil || !ok {
				t.Errorf("Exists(present) = (%v, %v), want (true, nil)", ok, err)
			}
			ok, err = s.Exists(ctx, "absent")
			if err != nil || ok {
				t.Errorf("Exists(absent) = (%v, %v), want (false, nil)", ok, err)
			}
		})
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"a", "b/c", "d/e/f"} {
				if err := s.Set(ctx, k, []byte("v")); err != nil {
					t.Fatalf("Set %q: %v", k, err)
				}
			}
			if err := s.Clear(ctx); err != nil {
				t.Fatalf("Clear: %v", err)
			}
			keys, err := s.ListPrefix(ctx, "")
			if err != nil {
				t.Fatalf("ListPrefix: %v", err)
			}
			if len(keys) != 0 {
				t.Errorf("keys after clear = %v, want none", keys)
			}
		})
	}
}

func TestSupportsDeletes(t *testing.T) {
	for name, s := range backends(t) {
		if !s.SupportsDeletes() {
			t.Errorf("%s: SupportsDeletes = false, want true", name)
		}
	}
}

// TestBadgerDeletePrefixLargeSubtree removes a subtree too large for one
// badger transaction; the batched delete must still take it all out.
func TestBadgerDeletePrefixLargeSubtree(t *testing.T) {
	ctx := context.Background()
	b, err := store.OpenBadger(store.Config{BadgerInMemory: true}, nil)
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	value := bytes.Repeat([]byte("v"), 1024)
	const n = 20000
	for i := 0; i < n; i++ {
		key := "big/arr/c/" + strconv.Itoa(i)
		if err := b.Set(ctx, key, value); err != nil {
			t.Fatalf("Set %q: %v", key, err)
		}
	}
	if err := b.Set(ctx, "keep/meta.json", []byte("g")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if err := b.DeletePrefix(ctx, "big/"); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}

	keys, err := b.ListPrefix(ctx, "")
	if err != nil {
		t.Fatalf("ListPrefix: %v", err)
	}
	if len(keys) != 1 || keys[0] != "keep/meta.json" {
		t.Errorf("remaining keys = %d, want only keep/meta.json", len(keys))
	}
}

// --- Zip backend (read-only) ---

func newTestZip(t *testing.T, entries map[string]string) *store.Zip {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create zip: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %q: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write %q: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close zip file: %v", err)
	}

	z, err := store.OpenZip(path)
	if err != nil {
		t.Fatalf("OpenZip: %v", err)
	}
	t.Cleanup(func() { z.Close() })
	return z
}

func TestZipReads(t *testing.T) {
	ctx := context.Background()
	z := newTestZip(t, map[string]string{
		"meta.json":        "root",
		"g1/meta.json":     "group",
		"g1/arr/meta.json": "array",
		"g1/arr/c/0/0":     "chunk",
	})

	got, err := z.Get(ctx, "g1/arr/c/0/0")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "chunk" {
		t.Errorf("Get = %q, want %q", got, "chunk")
	}

	if _, err := z.Get(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}

	keys, err := store.SortedKeys(ctx, z, "g1/arr/")
	if err != nil {
		t.Fatalf("SortedKeys: %v", err)
	}
	expected := []string{"g1/arr/c/0/0", "g1/arr/meta.json"}
	if !reflect.DeepEqual(keys, expected) {
		t.Errorf("keys = %v, want %v", keys, expected)
	}

	ok, err := z.Exists(ctx, "g1/meta.json")
	if err != nil || !ok {
		t.Errorf("Exists = (%v, %v), want (true, nil)", ok, err)
	}
}

func TestZipRejectsWrites(t *testing.T) {
	ctx := context.Background()
	z := newTestZip(t, map[string]string{"meta.json": "root"})

	if z.SupportsDeletes() {
		t.Error("SupportsDeletes = true, want false for archive")
	}
	if err := z.Set(ctx, "k", []byte("v")); !errors.Is(err, store.ErrUnsupported) {
		t.Errorf("Set = %v, want ErrUnsupported", err)
	}
	if err := z.Delete(ctx, "meta.json"); !errors.Is(err, store.ErrUnsupported) {
		t.Errorf("Delete = %v, want ErrUnsupported", err)
	}
	if err := z.DeletePrefix(ctx, ""); !errors.Is(err, store.ErrUnsupported) {
		t.Errorf("DeletePrefix = %v, want ErrUnsupported", err)
	}
	if err := z.Clear(ctx); !errors.Is(err, store.ErrUnsupported) {
		t.Errorf("Clear = %v, want ErrUnsupported", err)
	}
}

func TestLocalLayoutOnDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	l, err := store.NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	if err := l.Set(ctx, "g1/arr/c/0/0", []byte("chunk")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "g1", "arr", "c", "0", "0"))
	if err != nil {
		t.Fatalf("key file not on disk: %v", err)
	}
	if string(data) != "chunk" {
		t.Errorf("file contents = %q, want %q", data, "chunk")
	}

	// Deleting the only key prunes the now-empty directories.
	if err := l.Delete(ctx, "g1/arr/c/0/0"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "g1")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected g1 directory pruned, stat err = %v", err)
	}
}
