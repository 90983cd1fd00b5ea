// Package stream provides a DynamoDB Streams handler that repairs
// partially-deleted subtrees on the Dynamo backend.
//
// A prefix delete against DynamoDB is a sequence of batched item
// deletes, and a crash partway leaves chunk and metadata keys under a
// node whose own metadata key is already gone. The sweeper watches the
// key table's stream for metadata removals and deletes whatever is
// still scoped under the removed node. It is best-effort repair of the
// window the store contract already permits, never an authority on
// hierarchy state.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/lattice/internal/keys"
	"github.com/jacentio/lattice/store"
)

// Sweeper processes DynamoDB stream events for the lattice key table.
type Sweeper struct {
	store  store.Store
	logger *slog.Logger
}

// NewSweeper creates a stream sweeper over the given backend, normally
// a store.Dynamo for the same table the stream is attached to.
func NewSweeper(s store.Store, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{store: s, logger: logger}
}

// HandleRemovals processes a batch of stream records. Designed to be
// used as an AWS Lambda handler.
func (s *Sweeper) HandleRemovals(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := s.processRecord(ctx, record); err != nil {
			s.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // retried, eventually DLQ
		}
	}
	return nil
}

// processRecord sweeps after a single metadata removal.
func (s *Sweeper) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	if record.EventName != "REMOVE" {
		return nil
	}

	attr, ok := record.Change.OldImage["k"]
	if !ok {
		return nil
	}
	key := attr.String()

	ref, err := keys.Decode(key)
	if err != nil || ref.Kind != keys.KindMetadata {
		return nil // chunk or foreign key removal, nothing to sweep
	}
	if ref.Path == "" {
		return nil // root metadata rewrites happen during Clear/Init
	}

	prefix := keys.NodePrefix(ref.Path)
	orphans, err := s.store.ListPrefix(ctx, prefix)
	if err != nil {
		return fmt.Errorf("list %q: %w", prefix, err)
	}
	if len(orphans) == 0 {
		return nil
	}

	// Keep the sweep scoped: only keys that decode under the removed
	// node are touched, anything undecodable is left for inspection.
	swept := 0
	for _, orphan := range orphans {
		if !strings.HasPrefix(orphan, prefix) {
			continue
		}
		if _, err := keys.Decode(orphan); err != nil {
			s.logger.Warn("skipping undecodable key", "key", orphan)
			continue
		}
		if err := s.store.Delete(ctx, orphan); err != nil {
			return fmt.Errorf("sweep %q: %w", orphan, err)
		}
		swept++
	}

	s.logger.Info("swept orphaned keys",
		"path", ref.Path,
		"swept", swept,
	)
	return nil
}
