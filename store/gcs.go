package store

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCS is a Store keeping one object per key in a Google Cloud Storage
// bucket, optionally scoped under an object-name prefix. Object stores
// have no rename or batch delete, so prefix deletes are issued object by
// object; a failure partway leaves the true partial state listable.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ Store = (*GCS)(nil)

// NewGCS creates a store over an existing client.
func NewGCS(client *storage.Client, cfg Config) *GCS {
	cfg.validate()
	prefix := cfg.GCSPrefix
	if prefix != "" {
		prefix += "/"
	}
	return &GCS{client: client, bucket: cfg.GCSBucket, prefix: prefix}
}

// NewGCSFromEnv creates a store using ambient Google credentials, or the
// service-account key file at keyPath when it is non-empty.
func NewGCSFromEnv(ctx context.Context, cfg Config, keyPath string) (*GCS, error) {
	var opts []option.ClientOption
	if keyPath != "" {
		opts = append(opts, option.WithCredentialsFile(keyPath))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, ioErr("open", cfg.GCSBucket, err)
	}
	return NewGCS(client, cfg), nil
}

// Close releases the underlying client.
func (g *GCS) Close() error { return g.client.Close() }

func (g *GCS) object(key string) *storage.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(g.prefix + key)
}

// Get reads the object holding key.
func (g *GCS) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := g.object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
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

// Set writes value to the object holding key. GCS object writes are
// atomic: the object appears fully written or not at all.
func (g *GCS) Set(ctx context.Context, key string, value []byte) error {
	w := g.object(key).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	if _, err := w.Write(value); err != nil {
		w.Close()
		return ioErr("set", key, err)
	}
	if err := w.Close(); err != nil {
		return ioErr("set", key, err)
	}
	return nil
}

// Delete removes the object holding key if present.
func (g *GCS) Delete(ctx context.Context, key string) error {
	err := g.object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return ioErr("delete", key, err)
}

// DeletePrefix removes every key beginning with prefix.
func (g *GCS) DeletePrefix(ctx context.Context, prefix string) error {
	keys, err := g.ListPrefix(ctx, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := g.Delete(ctx, key); err != nil {
			return ioErr("delete_prefix", prefix, err)
		}
	}
	return nil
}

// ListPrefix returns all keys beginning with prefix.
func (g *GCS) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{
		Prefix: g.prefix + prefix,
	})

	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, ioErr("list_prefix", prefix, err)
		}
		keys = append(keys, attrs.Name[len(g.prefix):])
	}
	return keys, nil
}

// Exists reports whether the object holding key is present.
func (g *GCS) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, ioErr("exists", key, err)
	}
	return true, nil
}

// Clear removes all keys under the store's scope.
func (g *GCS) Clear(ctx context.Context) error {
	return g.DeletePrefix(ctx, "")
}

// SupportsDeletes always reports true.
func (g *GCS) SupportsDeletes() bool { return true }
