package archive

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/pkg/platform/sentinel"
)

func TestFilesystemStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(ctx, "appeal/2025-06-01.json")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, store.Put(ctx, "appeal/2025-06-01.json", []byte(`{"a-1":{}}`)))
	require.NoError(t, store.Put(ctx, "report/2025-06-02.json", []byte(`{"r-1":{}}`)))

	data, err := store.Get(ctx, "appeal/2025-06-01.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a-1":{}}`, string(data))

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"appeal/2025-06-01.json", "report/2025-06-02.json"}, keys)
}

func TestFilesystemStoreRejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Put(ctx, "../outside.json", []byte("{}")))
	_, err = store.Get(ctx, "/etc/passwd")
	assert.Error(t, err)
}

func TestFilesystemStoreMerge(t *testing.T) {
	ctx := context.Background()
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	day := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, Merge(ctx, store, "appeal", day, "a-1", json.RawMessage(`{"id":"a-1"}`)))
	require.NoError(t, Merge(ctx, store, "appeal", day.Add(10*time.Hour), "a-2", json.RawMessage(`{"id":"a-2"}`)))

	data, err := store.Get(ctx, "appeal/2025-06-01.json")
	require.NoError(t, err)

	var blob map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &blob))
	assert.Len(t, blob, 2)
}
