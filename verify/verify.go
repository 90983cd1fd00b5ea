// Package verify validates backend implementations against the trusted
// in-memory reference model.
//
// The technique is a deterministic operation log: every mutating
// hierarchy call is recorded as a structured entry, the log is replayed
// against both the candidate backend and a fresh Memory store, and the
// two key sets are compared after each step. A new backend that passes
// Check over representative logs has the same observable hierarchy
// semantics as the reference.
package verify

import (
	"context"
	"fmt"
	"sort"

	"github.com/jacentio/lattice/hierarchy"
	"github.com/jacentio/lattice/store"
)

// OpKind names a mutating hierarchy operation.
type OpKind string

const (
	// OpCreateGroup records Hierarchy.CreateGroup.
	OpCreateGroup OpKind = "create_group"
	// OpCreateArray records Hierarchy.CreateArray.
	OpCreateArray OpKind = "create_array"
	// OpDelete records Hierarchy.Delete.
	OpDelete OpKind = "delete"
	// OpMove records Hierarchy.Move.
	OpMove OpKind = "move"
	// OpWriteChunk records Hierarchy.WriteChunk.
	OpWriteChunk OpKind = "write_chunk"
	// OpDeleteChunk records Hierarchy.DeleteChunk.
	OpDeleteChunk OpKind = "delete_chunk"
)

// Op is one replayable log entry.
type Op struct {
	Kind OpKind

	// Path is the operation's target node.
	Path string

	// To is the destination path for OpMove.
	To string

	// Spec is the array spec for OpCreateArray.
	Spec hierarchy.ArraySpec

	// Coord is the chunk coordinate for chunk operations.
	Coord []int

	// Data is the chunk payload for OpWriteChunk.
	Data []byte
}

// Log is an append-only sequence of operations.
type Log struct {
	ops []Op
}

// Append records an operation.
func (l *Log) Append(op Op) { l.ops = append(l.ops, op) }

// CreateGroup records a group creation.
func (l *Log) CreateGroup(path string) {
	l.Append(Op{Kind: OpCreateGroup, Path: path})
}

// CreateArray records an array creation.
func (l *Log) CreateArray(path string, spec hierarchy.ArraySpec) {
	l.Append(Op{Kind: OpCreateArray, Path: path, Spec: spec})
}

// Delete records a node deletion.
func (l *Log) Delete(path string) {
	l.Append(Op{Kind: OpDelete, Path: path})
}

// Move records a node move.
func (l *Log) Move(from, to string) {
	l.Append(Op{Kind: OpMove, Path: from, To: to})
}

// WriteChunk records a chunk write.
func (l *Log) WriteChunk(path string, coord []int, data []byte) {
	l.Append(Op{Kind: OpWriteChunk, Path: path, Coord: coord, Data: data})
}

// Ops returns the recorded operations in order.
func (l *Log) Ops() []Op { return l.ops }

// apply drives one operation against a hierarchy.
func apply(ctx context.Context, h *hierarchy.Hierarchy, op Op) error {
	switch op.Kind {
	case OpCreateGroup:
		_, err := h.CreateGroup(ctx, op.Path)
		return err
	case OpCreateArray:
		_, err := h.CreateArray(ctx, op.Path, op.Spec)
		return err
	case OpDelete:
		return h.Delete(ctx, op.Path)
	case OpMove:
		return h.Move(ctx, op.Path, op.To)
	case OpWriteChunk:
		return h.WriteChunk(ctx, op.Path, op.Coord, op.Data)
	case OpDeleteChunk:
		return h.DeleteChunk(ctx, op.Path, op.Coord)
	default:
		return fmt.Errorf("lattice: unknown op kind %q", op.Kind)
	}
}

// Replay clears the backend, initializes a fresh hierarchy, and drives
// the whole log through it.
func Replay(ctx context.Context, log *Log, s store.Store) error {
	h := hierarchy.New(s, nil)
	if err := h.Clear(ctx); err != nil {
		return err
	}
	for i, op := range log.ops {
		if err := apply(ctx, h, op); err != nil {
			return fmt.Errorf("op %d (%s %q): %w", i, op.Kind, op.Path, err)
		}
	}
	return nil
}

// Diff compares the key sets of two backends under prefix. It returns
// the sorted keys present in a but not b, and in b but not a; both nil
// means the backends agree.
func Diff(ctx context.Context, a, b store.Store, prefix string) (onlyA, onlyB []string, err error) {
	keysA, err := store.SortedKeys(ctx, a, prefix)
	if err != nil {
		return nil, nil, err
	}
	keysB, err := store.SortedKeys(ctx, b, prefix)
	if err != nil {
		return nil, nil, err
	}

	inB := make(map[string]bool, len(keysB))
	for _, k := range keysB {
		inB[k] = true
	}
	inA := make(map[string]bool, len(keysA))
	for _, k := range keysA {
		inA[k] = true
	}
	for _, k := range keysA {
		if !inB[k] {
			onlyA = append(onlyA, k)
		}
	}
	for _, k := range keysB {
		if !inA[k] {
			onlyB = append(onlyB, k)
		}
	}
	sort.Strings(onlyA)
	sort.Strings(onlyB)
	return onlyA, onlyB, nil
}

// Check replays the log against the candidate backend and a fresh
// in-memory reference, asserting listing agreement after every mutating
// operation. Any divergence is reported with the offending operation
// index and the differing keys.
func Check(ctx context.Context, log *Log, candidate store.Store) error {
	model := store.NewMemory()

	ch := hierarchy.New(candidate, nil)
	mh := hierarchy.New(model, nil)
	if err := ch.Clear(ctx); err != nil {
		return fmt.Errorf("candidate init: %w", err)
	}
	if err := mh.Clear(ctx); err != nil {
		return fmt.Errorf("model init: %w", err)
	}

	for i, op := range log.ops {
		if err := apply(ctx, ch, op); err != nil {
			return fmt.Errorf("candidate op %d (%s %q): %w", i, op.Kind, op.Path, err)
		}
		if err := apply(ctx, mh, op); err != nil {
			return fmt.Errorf("model op %d (%s %q): %w", i, op.Kind, op.Path, err)
		}
		extra, missing, err := Diff(ctx, candidate, model, "")
		if err != nil {
			return err
		}
		if len(extra) > 0 || len(missing) > 0 {
			return fmt.Errorf(
				"lattice: listing divergence after op %d (%s %q): candidate-only %v, model-only %v",
				i, op.Kind, op.Path, extra, missing)
		}
	}
	return nil
}
