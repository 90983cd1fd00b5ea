package store

import (
	"archive/zip"
	"context"
	"io"
)

// Zip is a read-only Store over a zip archive. Each archive entry name is
// a key. The archive is write-once: Set, Delete, DeletePrefix and Clear
// report ErrUnsupported so the hierarchy engine can reject mutations up
// front instead of partially applying them.
type Zip struct {
	rc      *zip.ReadCloser
	entries map[string]*zip.File
}

var _ Store = (*Zip)(nil)

// OpenZip opens the archive at path for reading.
func OpenZip(path string) (*Zip, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, ioErr("open", path, err)
	}
	entries := make(map[string]*zip.File, len(rc.File))
	for _, f := range rc.File {
		if f.FileInfo().IsDir() {
			continue
		}
		entries[f.Name] = f
	}
	return &Zip{rc: rc, entries: entries}, nil
}

// Close releases the underlying archive.
func (z *Zip) Close() error { return z.rc.Close() }

// Get reads the archive entry named key.
func (z *Zip) Get(_ context.Context, key string) ([]byte, error) {
	f, ok := z.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	r, err := f.Open()
	if err != nil {
		return nil, ioErr("get", key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ioErr("get", key, err)
	}
	return data, nil
}

// Set is unsupported on an archive.
func (z *Zip) Set(_ context.Context, key string, _ []byte) error {
	return ErrUnsupported
}

// Delete is unsupported on an archive.
func (z *Zip) Delete(_ context.Context, key string) error {
	return ErrUnsupported
}

// DeletePrefix is unsupported on an archive.
func (z *Zip) DeletePrefix(_ context.Context, prefix string) error {
	return ErrUnsupported
}

// ListPrefix returns all entry names beginning with prefix.
func (z *Zip) ListPrefix(_ context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0, len(z.entries))
	for key := range z.entries {
		if hasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Exists reports whether an entry named key is present.
func (z *Zip) Exists(_ context.Context, key string) (bool, error) {
	_, ok := z.entries[key]
	return ok, nil
}

// Clear is unsupported on an archive.
func (z *Zip) Clear(_ context.Context) error {
	return ErrUnsupported
}

// SupportsDeletes reports false: the archive is write-once.
func (z *Zip) SupportsDeletes() bool { return false }
