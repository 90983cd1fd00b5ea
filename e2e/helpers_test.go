//go:build e2e

package e2e

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jacentio/lattice/store"
)

// writeArchive snapshots every key of src into a zip file and returns
// its path.
func writeArchive(t *testing.T, src store.Store) string {
	t.Helper()
	ctx := context.Background()

	keys, err := store.SortedKeys(ctx, src, "")
	if err != nil {
		t.Fatalf("SortedKeys: %v", err)
	}

	path := filepath.Join(t.TempDir(), "snapshot.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	zw := zip.NewWriter(f)
	for _, key := range keys {
		value, err := src.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get %q: %v", key, err)
		}
		w, err := zw.Create(key)
		if err != nil {
			t.Fatalf("zip create %q: %v", key, err)
		}
		if _, err := w.Write(value); err != nil {
			t.Fatalf("zip write %q: %v", key, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
	return path
}
