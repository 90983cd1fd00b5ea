package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Local is a directory-backed Store keeping one file per key. Slashes in
// keys map to subdirectories, so the on-disk layout mirrors the logical
// hierarchy and is readable by external tools.
type Local struct {
	root string

	// mu serializes mutations so DeletePrefix is atomic with respect to
	// concurrent listings from this process. Other processes touching
	// the same directory are outside the contract.
	mu sync.RWMutex
}

var _ Store = (*Local)(nil)

// NewLocal creates a store rooted at dir, creating it if needed.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, ioErr("open", dir, err)
	}
	return &Local{root: dir}, nil
}

// Root returns the store's root directory.
func (l *Local) Root() string { return l.root }

func (l *Local) filePath(key string) string {
	return filepath.Join(l.root, filepath.FromSlash(key))
}

// Get reads the file holding key.
func (l *Local) Get(_ context.Context, key string) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	data, err := os.ReadFile(l.filePath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, ioErr("get", key, err)
	}
	return data, nil
}

// Set writes value to the file holding key, creating parent directories
// as needed. The write goes through a temp file and rename so a reader
// never sees partial bytes.
func (l *Local) Set(_ context.Context, key string, value []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	path := l.filePath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ioErr("set", key, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".lattice-*")
	if err != nil {
		return ioErr("set", key, err)
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return ioErr("set", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return ioErr("set", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return ioErr("set", key, err)
	}
	return nil
}

// Delete removes the file holding key and prunes empty parent
// directories up to the root.
func (l *Local) Delete(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	path := l.filePath(key)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return ioErr("delete", key, err)
	}
	l.pruneEmptyDirs(filepath.Dir(path))
	return nil
}

// DeletePrefix removes every key beginning with prefix.
func (l *Local) DeletePrefix(ctx context.Context, prefix string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys, err := l.listLocked(prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		path := l.filePath(key)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return ioErr("delete_prefix", prefix, err)
		}
		l.pruneEmptyDirs(filepath.Dir(path))
	}
	return nil
}

// ListPrefix returns all keys beginning with prefix.
func (l *Local) ListPrefix(_ context.Context, prefix string) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.listLocked(prefix)
}

func (l *Local) listLocked(prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if hasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, ioErr("list_prefix", prefix, err)
	}
	return keys, nil
}

// Exists reports whether the file holding key is present.
func (l *Local) Exists(_ context.Context, key string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, err := os.Stat(l.filePath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, ioErr("exists", key, err)
	}
	return true, nil
}

// Clear removes every key, leaving the root directory in place.
func (l *Local) Clear(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := os.ReadDir(l.root)
	if err != nil {
		return ioErr("clear", "", err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(l.root, entry.Name())); err != nil {
			return ioErr("clear", entry.Name(), err)
		}
	}
	return nil
}

// SupportsDeletes always reports true.
func (l *Local) SupportsDeletes() bool { return true }

// pruneEmptyDirs removes now-empty directories between dir and the root.
func (l *Local) pruneEmptyDirs(dir string) {
	for dir != l.root && len(dir) > len(l.root) {
		if err := os.Remove(dir); err != nil {
			return // not empty or already gone
		}
		dir = filepath.Dir(dir)
	}
}
