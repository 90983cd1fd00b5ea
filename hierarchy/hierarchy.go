package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jacentio/lattice/internal/keys"
	"github.com/jacentio/lattice/store"
)

// Hierarchy exposes the tree of groups and arrays persisted in a backend.
// Every logical operation translates into one or more store calls; the
// backend's key set is the single source of truth, never cached.
type Hierarchy struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a hierarchy over the given backend. A nil logger falls
// back to slog.Default().
func New(s store.Store, logger *slog.Logger) *Hierarchy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hierarchy{store: s, logger: logger}
}

// Store returns the underlying backend.
func (h *Hierarchy) Store() store.Store { return h.store }

// Init writes the root group's metadata key, establishing the hierarchy.
// It touches nothing else; a populated store keeps its other keys.
func (h *Hierarchy) Init(ctx context.Context) error {
	root := &Group{Path: "", ID: uuid.NewString()}
	raw, err := encodeNode(root)
	if err != nil {
		return err
	}
	return h.store.Set(ctx, keys.Metadata(""), raw)
}

// Clear removes every key, then re-establishes the root group.
func (h *Hierarchy) Clear(ctx context.Context) error {
	if err := h.store.Clear(ctx); err != nil {
		return err
	}
	return h.Init(ctx)
}

// CreateGroup creates an empty group at path. The path must be free:
// an occupied path fails with ErrAlreadyExists and leaves the store
// unchanged. Ancestor groups are not created implicitly; callers
// maintain the ancestor chain.
func (h *Hierarchy) CreateGroup(ctx context.Context, path string) (*Group, error) {
	if err := h.checkCreatable(ctx, path); err != nil {
		return nil, err
	}
	group := &Group{Path: path, ID: uuid.NewString()}
	raw, err := encodeNode(group)
	if err != nil {
		return nil, err
	}
	if err := h.store.Set(ctx, keys.Metadata(path), raw); err != nil {
		return nil, err
	}
	h.logger.Debug("created group", "path", path)
	return group, nil
}

// CreateArray creates an array at path with the given spec. Chunk keys
// are not written at creation time; they appear lazily as data is
// written. An occupied path fails with ErrAlreadyExists.
func (h *Hierarchy) CreateArray(ctx context.Context, path string, spec ArraySpec) (*Array, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := h.checkCreatable(ctx, path); err != nil {
		return nil, err
	}
	array := &Array{Path: path, ID: uuid.NewString(), Spec: spec}
	raw, err := encodeNode(array)
	if err != nil {
		return nil, err
	}
	if err := h.store.Set(ctx, keys.Metadata(path), raw); err != nil {
		return nil, err
	}
	h.logger.Debug("created array", "path", path, "shape", spec.Shape, "chunks", spec.ChunkShape)
	return array, nil
}

// checkCreatable validates path and rejects creation over the root or an
// occupied path. Re-entering Present requires an intervening delete.
func (h *Hierarchy) checkCreatable(ctx context.Context, path string) error {
	if err := keys.ValidatePath(path); err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("%w: root exists from initialization", store.ErrAlreadyExists)
	}
	occupied, err := h.store.Exists(ctx, keys.Metadata(path))
	if err != nil {
		return err
	}
	if occupied {
		return fmt.Errorf("%w: %q", store.ErrAlreadyExists, path)
	}
	return nil
}

// Open materializes the node at path, classifying it by its metadata
// tag. Returns ErrNotFound when no metadata key exists there.
func (h *Hierarchy) Open(ctx context.Context, path string) (Node, error) {
	if err := keys.ValidatePath(path); err != nil {
		return nil, err
	}
	raw, err := h.store.Get(ctx, keys.Metadata(path))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: no node at %q", store.ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	return decodeNode(path, raw)
}

// OpenGroup opens the node at path and requires it to be a group.
func (h *Hierarchy) OpenGroup(ctx context.Context, path string) (*Group, error) {
	node, err := h.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	group, ok := node.(*Group)
	if !ok {
		return nil, fmt.Errorf("%w: %q is an array, not a group", store.ErrInvalidPath, path)
	}
	return group, nil
}

// OpenArray opens the node at path and requires it to be an array.
func (h *Hierarchy) OpenArray(ctx context.Context, path string) (*Array, error) {
	node, err := h.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	array, ok := node.(*Array)
	if !ok {
		return nil, fmt.Errorf("%w: %q is a group, not an array", store.ErrInvalidPath, path)
	}
	return array, nil
}

// Member pairs a node with its name relative to the listed group.
type Member struct {
	// Name is the node's path relative to the group it was listed from.
	Name string

	// Node is the materialized child.
	Node Node
}

// Members lists the nodes below the group at path, computed from the
// store's metadata keys on every call. maxDepth 1 returns direct
// children only; maxDepth <= 0 returns all descendants. Ordering is
// unspecified; callers needing determinism must sort.
func (h *Hierarchy) Members(ctx context.Context, path string, maxDepth int) ([]Member, error) {
	if _, err := h.OpenGroup(ctx, path); err != nil {
		return nil, err
	}

	prefix := keys.NodePrefix(path)
	allKeys, err := h.store.ListPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var members []Member
	for _, key := range allKeys {
		ref, err := keys.Decode(key)
		if err != nil || ref.Kind != keys.KindMetadata {
			continue
		}
		if ref.Path == path {
			continue // the group's own metadata key
		}
		name := strings.TrimPrefix(ref.Path, prefix)
		depth := strings.Count(name, "/") + 1
		if maxDepth > 0 && depth > maxDepth {
			continue
		}
		node, err := h.Open(ctx, ref.Path)
		if err != nil {
			return nil, err
		}
		members = append(members, Member{Name: name, Node: node})
	}
	return members, nil
}

// Delete removes the node at path and, for groups, every descendant:
// one delete-by-prefix call over the node's key scope removes its
// metadata key and all descendant metadata and chunk keys. The root
// group is never deletable. Returns ErrNotFound when path holds no
// node, and ErrUnsupported before any mutation when the backend cannot
// delete.
func (h *Hierarchy) Delete(ctx context.Context, path string) error {
	if err := keys.ValidatePath(path); err != nil {
		return err
	}
	if path == "" {
		return store.ErrRootForbidden
	}
	if !h.store.SupportsDeletes() {
		return fmt.Errorf("%w: delete", store.ErrUnsupported)
	}

	node, err := h.Open(ctx, path)
	if err != nil {
		return err
	}
	if err := h.store.DeletePrefix(ctx, keys.NodePrefix(path)); err != nil {
		return err
	}
	h.logger.Debug("deleted node", "path", path, "kind", node.Kind())
	return nil
}

// Move relocates the node at from, and every descendant key, to the
// free path to. It is copy-then-delete: all keys are copied under the
// new scope, then the old scope is removed. The window between the two
// phases is observable; backends offering native rename are not assumed.
func (h *Hierarchy) Move(ctx context.Context, from, to string) error {
	if err := keys.ValidatePath(from); err != nil {
		return err
	}
	if err := keys.ValidatePath(to); err != nil {
		return err
	}
	if from == "" {
		return store.ErrRootForbidden
	}
	if to == from || strings.HasPrefix(to, from+"/") {
		return fmt.Errorf("%w: cannot move %q beneath itself", store.ErrInvalidPath, from)
	}
	if !h.store.SupportsDeletes() {
		return fmt.Errorf("%w: move", store.ErrUnsupported)
	}
	if _, err := h.Open(ctx, from); err != nil {
		return err
	}
	if err := h.checkCreatable(ctx, to); err != nil {
		return err
	}

	oldPrefix := keys.NodePrefix(from)
	newPrefix := keys.NodePrefix(to)
	moved, err := h.store.ListPrefix(ctx, oldPrefix)
	if err != nil {
		return err
	}
	for _, key := range moved {
		value, err := h.store.Get(ctx, key)
		if err != nil {
			return err
		}
		if err := h.store.Set(ctx, newPrefix+strings.TrimPrefix(key, oldPrefix), value); err != nil {
			return err
		}
	}
	if err := h.store.DeletePrefix(ctx, oldPrefix); err != nil {
		return err
	}
	h.logger.Debug("moved node", "from", from, "to", to, "keys", len(moved))
	return nil
}

// SetAttributes replaces the attribute metadata of the node at path.
func (h *Hierarchy) SetAttributes(ctx context.Context, path string, attrs map[string]any) error {
	node, err := h.Open(ctx, path)
	if err != nil {
		return err
	}
	switch n := node.(type) {
	case *Group:
		n.Attributes = attrs
	case *Array:
		n.Attributes = attrs
	}
	raw, err := encodeNode(node)
	if err != nil {
		return err
	}
	return h.store.Set(ctx, keys.Metadata(path), raw)
}

// WriteChunk stores the encoded bytes of one chunk of the array at
// path. The coordinate must lie within the array's chunk grid.
func (h *Hierarchy) WriteChunk(ctx context.Context, path string, coord []int, data []byte) error {
	array, err := h.OpenArray(ctx, path)
	if err != nil {
		return err
	}
	if err := checkCoord(array.Spec, coord); err != nil {
		return err
	}
	return h.store.Set(ctx, keys.Chunk(path, coord), data)
}

// ReadChunk retrieves the encoded bytes of one chunk. An unwritten
// chunk returns ErrNotFound: absence means fill value, not corruption.
func (h *Hierarchy) ReadChunk(ctx context.Context, path string, coord []int) ([]byte, error) {
	array, err := h.OpenArray(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := checkCoord(array.Spec, coord); err != nil {
		return nil, err
	}
	return h.store.Get(ctx, keys.Chunk(path, coord))
}

// DeleteChunk removes one written chunk, returning the array to fill
// value semantics at that coordinate.
func (h *Hierarchy) DeleteChunk(ctx context.Context, path string, coord []int) error {
	array, err := h.OpenArray(ctx, path)
	if err != nil {
		return err
	}
	if err := checkCoord(array.Spec, coord); err != nil {
		return err
	}
	if !h.store.SupportsDeletes() {
		return fmt.Errorf("%w: delete", store.ErrUnsupported)
	}
	return h.store.Delete(ctx, keys.Chunk(path, coord))
}

// checkCoord validates a chunk coordinate against the array's grid.
func checkCoord(spec ArraySpec, coord []int) error {
	if len(coord) != len(spec.Shape) {
		return fmt.Errorf("%w: coordinate rank %d != array rank %d",
			store.ErrInvalidPath, len(coord), len(spec.Shape))
	}
	grid := spec.GridShape()
	for i, c := range coord {
		if c < 0 || c >= grid[i] {
			return fmt.Errorf("%w: chunk coordinate %d out of range [0,%d) in dimension %d",
				store.ErrInvalidPath, c, grid[i], i)
		}
	}
	return nil
}
