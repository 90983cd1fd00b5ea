package verify_test

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/jacentio/lattice/hierarchy"
	"github.com/jacentio/lattice/store"
	"github.com/jacentio/lattice/verify"
)

func scriptedLog() *verify.Log {
	spec := hierarchy.ArraySpec{Shape: []int{10, 10}, ChunkShape: []int{5, 5}, DataType: "int64"}

	log := &verify.Log{}
	log.CreateGroup("g1")
	log.CreateGroup("g1/sub")
	log.CreateArray("g1/arr", spec)
	log.WriteChunk("g1/arr", []int{0, 0}, []byte("c00"))
	log.WriteChunk("g1/arr", []int{1, 1}, []byte("c11"))
	log.CreateGroup("g2")
	log.CreateArray("g2/other", spec)
	log.Delete("g1/arr")
	log.Move("g2", "g1/sub/g2")
	log.Delete("g1/sub")
	return log
}

func TestReplayIsDeterministic(t *testing.T) {
	ctx := context.Background()
	log := scriptedLog()

	a := store.NewMemory()
	b := store.NewMemory()
	if err := verify.Replay(ctx, log, a); err != nil {
		t.Fatalf("Replay a: %v", err)
	}
	if err := verify.Replay(ctx, log, b); err != nil {
		t.Fatalf("Replay b: %v", err)
	}

	onlyA, onlyB, err := verify.Diff(ctx, a, b, "")
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if len(onlyA) > 0 || len(onlyB) > 0 {
		t.Errorf("replays diverged: a-only %v, b-only %v", onlyA, onlyB)
	}
}

func TestReplayClearsPriorState(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	if err := s.Set(ctx, "stale/meta.json", []byte("old")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	log := &verify.Log{}
	log.CreateGroup("fresh")
	if err := verify.Replay(ctx, log, s); err != nil {
		t.Fatalf("Replay: %v", err)
	}

	keys, err := store.SortedKeys(ctx, s, "")
	if err != nil {
		t.Fatalf("SortedKeys: %v", err)
	}
	expected := []string{"fresh/meta.json", "meta.json"}
	if !reflect.DeepEqual(keys, expected) {
		t.Errorf("keys = %v, want %v", keys, expected)
	}
}

func TestDiffReportsBothSides(t *testing.T) {
	ctx := context.Background()
	a := store.NewMemory()
	b := store.NewMemory()

	for _, k := range []string{"shared", "a-only"} {
		if err := a.Set(ctx, k, []byte("v")); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}
	for _, k := range []string{"shared", "b-only"} {
		if err := b.Set(ctx, k, []byte("v")); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	onlyA, onlyB, err := verify.Diff(ctx, a, b, "")
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}
	if !reflect.DeepEqual(onlyA, []string{"a-only"}) {
		t.Errorf("onlyA = %v, want [a-only]", onlyA)
	}
	if !reflect.DeepEqual(onlyB, []string{"b-only"}) {
		t.Errorf("onlyB = %v, want [b-only]", onlyB)
	}
}

func TestCheckAcceptsFaithfulBackend(t *testing.T) {
	ctx := context.Background()

	local, err := store.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	candidates := map[string]store.Store{
		"memory": store.NewMemory(),
		"local":  local,
	}
	for name, candidate := range candidates {
		t.Run(name, func(t *testing.T) {
			if err := verify.Check(ctx, scriptedLog(), candidate); err != nil {
				t.Errorf("Check: %v", err)
			}
		})
	}
}

// lossyStore drops every chunk write, simulating a buggy backend.
type lossyStore struct {
	store.Store
}

func (l lossyStore) Set(ctx context.Context, key string, value []byte) error {
	if strings.Contains(key, "/c/") {
		return nil // silently dropped
	}
	return l.Store.Set(ctx, key, value)
}

func TestCheckRejectsDivergentBackend(t *testing.T) {
	ctx := context.Background()

	log := &verify.Log{}
	log.CreateArray("arr", hierarchy.ArraySpec{Shape: []int{4}, ChunkShape: []int{2}, DataType: "int8"})
	log.WriteChunk("arr", []int{0}, []byte("x"))

	err := verify.Check(ctx, log, lossyStore{store.NewMemory()})
	if err == nil {
		t.Fatal("Check accepted a backend that drops chunk writes")
	}
	if !strings.Contains(err.Error(), "divergence") {
		t.Errorf("Check error = %v, want listing divergence", err)
	}
}
