// Package archive implements the durable cold side of the retention
// guarantee: blobs keyed entity-type/YYYY-MM-DD.json, each a JSON object
// mapping record key to record payload. Merging by record key makes every
// write idempotent, which is what lets the stream consumer be at-least-once.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"warden/pkg/platform/sentinel"
)

// ObjectStore is the cold blob storage boundary.
type ObjectStore interface {
	// Get returns the blob at key, or sentinel.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put replaces the blob at key.
	Put(ctx context.Context, key string, data []byte) error
	// List returns all blob keys, sorted.
	List(ctx context.Context) ([]string, error)
}

// BlobKey renders the archive partition for an entity and day.
func BlobKey(entity string, day time.Time) string {
	return fmt.Sprintf("%s/%s.json", entity, day.UTC().Format("2006-01-02"))
}

// Merge folds one record into the blob for its entity and day, never
// overwriting the blob wholesale. Re-merging an already-present key replaces
// it with identical content, so replays are safe no-ops.
func Merge(ctx context.Context, store ObjectStore, entity string, day time.Time, recordKey string, payload json.RawMessage) error {
	key := BlobKey(entity, day)

	blob := make(map[string]json.RawMessage)
	existing, err := store.Get(ctx, key)
	switch {
	case err == nil:
		if err := json.Unmarshal(existing, &blob); err != nil {
			return fmt.Errorf("decode archive blob %s: %w", key, err)
		}
	case errors.Is(err, sentinel.ErrNotFound):
	default:
		return fmt.Errorf("read archive blob %s: %w", key, err)
	}

	blob[recordKey] = payload
	data, err := json.MarshalIndent(blob, "", "  ")
	if err != nil {
		return fmt.Errorf("encode archive blob %s: %w", key, err)
	}
	if err := store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("write archive blob %s: %w", key, err)
	}
	return nil
}
