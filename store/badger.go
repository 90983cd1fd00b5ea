package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// Badger is a Store backed by an embedded badger database. It is the
// persistent single-host backend: key scans use badger's prefix
// iterators and prefix deletes run inside one transaction.
type Badger struct {
	db *badger.DB
}

var _ Store = (*Badger)(nil)

// badgerLogger adapts slog to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBadger opens a badger-backed store using cfg. A nil logger
// disables badger's internal logging.
func OpenBadger(cfg Config, logger *slog.Logger) (*Badger, error) {
	cfg.validate()
	if !cfg.BadgerInMemory && cfg.BadgerPath == "" {
		return nil, errors.New("lattice: badger path is required for persistent databases")
	}

	var opts badger.Options
	if cfg.BadgerInMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.BadgerPath, 0o750); err != nil {
			return nil, ioErr("open", cfg.BadgerPath, err)
		}
		opts = badger.DefaultOptions(cfg.BadgerPath)
	}
	opts = opts.WithSyncWrites(cfg.BadgerSyncWrites)
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, ioErr("open", cfg.BadgerPath, err)
	}
	return &Badger{db: db}, nil
}

// Close closes the underlying database.
func (b *Badger) Close() error { return b.db.Close() }

// Get retrieves a value by key.
func (b *Badger) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, ioErr("get", key, err)
	}
	return out, nil
}

// Set stores value under key.
func (b *Badger) Set(_ context.Context, key string, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	return ioErr("set", key, err)
}

// Delete removes the key if present.
func (b *Badger) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	return ioErr("delete", key, err)
}

// DeletePrefix removes every key beginning with prefix through a write
// batch. The batch splits into multiple transactions when the subtree
// exceeds badger's per-transaction limit, so a reader may observe a
// partial delete, which the store contract permits.
func (b *Badger) DeletePrefix(_ context.Context, prefix string) error {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := wb.Delete(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ioErr("delete_prefix", prefix, err)
	}
	return ioErr("delete_prefix", prefix, wb.Flush())
}

// ListPrefix returns all keys beginning with prefix.
func (b *Badger) ListPrefix(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, ioErr("list_prefix", prefix, err)
	}
	return keys, nil
}

// Exists reports whether the key is present.
func (b *Badger) Exists(_ context.Context, key string) (bool, error) {
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, ioErr("exists", key, err)
	}
	return true, nil
}

// Clear removes all keys.
func (b *Badger) Clear(ctx context.Context) error {
	return b.DeletePrefix(ctx, "")
}

// SupportsDeletes always reports true.
func (b *Badger) SupportsDeletes() bool { return true }
