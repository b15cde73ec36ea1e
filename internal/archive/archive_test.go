package archive

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/internal/audit"
	"warden/internal/moderation"
	"warden/internal/platform/kafka"
	"warden/internal/retention"
	id "warden/pkg/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func deletionMessage(t *testing.T, ev retention.DeletionEvent) *kafka.Message {
	t.Helper()
	value, err := json.Marshal(ev)
	require.NoError(t, err)
	return &kafka.Message{Topic: "warden.deletions", Key: []byte(ev.Entity + "/" + ev.Key), Value: value}
}

func TestDeletionHandlerArchivesRetentionExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryObjectStore()
	handler := NewDeletionHandler(store, discard())

	day := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	ev := retention.DeletionEvent{
		Entity:    "admin_action_log",
		Key:       "entry-1",
		Cause:     retention.CauseRetention,
		DeletedAt: day,
		Record:    json.RawMessage(`{"id":"entry-1","actor":"admin-1"}`),
	}
	require.NoError(t, handler.Handle(ctx, deletionMessage(t, ev)))

	blob, err := store.Get(ctx, "admin_action_log/2025-06-01.json")
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(blob, &decoded))
	assert.JSONEq(t, `{"id":"entry-1","actor":"admin-1"}`, string(decoded["entry-1"]))
}

func TestDeletionHandlerSameDayMerge(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryObjectStore()
	handler := NewDeletionHandler(store, discard())

	day := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	first := retention.DeletionEvent{
		Entity: "appeal", Key: "a-1", Cause: retention.CauseRetention,
		DeletedAt: day, Record: json.RawMessage(`{"id":"a-1"}`),
	}
	second := retention.DeletionEvent{
		Entity: "appeal", Key: "a-2", Cause: retention.CauseRetention,
		DeletedAt: day.Add(4 * time.Hour), Record: json.RawMessage(`{"id":"a-2"}`),
	}
	require.NoError(t, handler.Handle(ctx, deletionMessage(t, first)))
	require.NoError(t, handler.Handle(ctx, deletionMessage(t, second)))

	blob, err := store.Get(ctx, "appeal/2025-06-01.json")
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(blob, &decoded))
	assert.Len(t, decoded, 2, "same-day records merge into one blob")
}

func TestDeletionHandlerRedeliveryIsNoOp(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryObjectStore()
	handler := NewDeletionHandler(store, discard())

	ev := retention.DeletionEvent{
		Entity: "appeal", Key: "a-1", Cause: retention.CauseRetention,
		DeletedAt: time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
		Record:    json.RawMessage(`{"id":"a-1"}`),
	}
	msg := deletionMessage(t, ev)
	require.NoError(t, handler.Handle(ctx, msg))
	require.NoError(t, handler.Handle(ctx, msg))

	blob, err := store.Get(ctx, "appeal/2025-06-01.json")
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(blob, &decoded))
	assert.Len(t, decoded, 1, "replaying the same deletion must not duplicate")
}

func TestDeletionHandlerIgnoresManualDeletes(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryObjectStore()
	handler := NewDeletionHandler(store, discard())

	ev := retention.DeletionEvent{
		Entity: "report", Key: "r-1", Cause: retention.CauseManual,
		DeletedAt: time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
		Record:    json.RawMessage(`{"id":"r-1"}`),
	}
	require.NoError(t, handler.Handle(ctx, deletionMessage(t, ev)))

	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys, "manual deletions are observed, not archived")
}

func TestDeletionHandlerMalformedEventSkipped(t *testing.T) {
	handler := NewDeletionHandler(NewInMemoryObjectStore(), discard())
	msg := &kafka.Message{Topic: "warden.deletions", Value: []byte("not json")}
	assert.NoError(t, handler.Handle(context.Background(), msg), "poison messages must not wedge the consumer")
}

func TestDeletionHandlerStoreFailurePropagates(t *testing.T) {
	store := NewInMemoryObjectStore()
	store.FailPut = errors.New("disk full")
	handler := NewDeletionHandler(store, discard())

	ev := retention.DeletionEvent{
		Entity: "appeal", Key: "a-1", Cause: retention.CauseRetention,
		DeletedAt: time.Now(), Record: json.RawMessage(`{}`),
	}
	err := handler.Handle(context.Background(), deletionMessage(t, ev))
	assert.Error(t, err, "a failed merge must stay uncommitted for redelivery")
}

func TestReportArchiver(t *testing.T) {
	ctx := context.Background()
	reports := moderation.NewInMemoryReportStore()
	store := NewInMemoryObjectStore()
	auditLog := audit.NewInMemoryStore()
	auditor := audit.NewPublisher(auditLog, discard(), 30*24*time.Hour)

	resolvedAt := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	var resolvedID id.ReportID
	for i := 0; i < 3; i++ {
		r := moderation.Report{
			ID:          id.NewReportID(),
			ContentType: "post",
			ContentID:   "p-1",
			ReporterID:  "u-9",
			Reason:      "spam",
			Status:      moderation.ReportActionTaken,
			CreatedAt:   resolvedAt.Add(-time.Hour),
			ResolvedAt:  &resolvedAt,
		}
		resolvedID = r.ID
		require.NoError(t, reports.Add(ctx, r))
	}
	// A pending report must survive the batch untouched.
	pending := moderation.Report{
		ID: id.NewReportID(), ContentType: "post", ContentID: "p-2",
		ReporterID: "u-9", Reason: "spam", Status: moderation.ReportPending,
		CreatedAt: resolvedAt,
	}
	require.NoError(t, reports.Add(ctx, pending))

	archiver := NewReportArchiver(reports, store, auditor, discard())
	moved, err := archiver.ArchiveResolved(ctx, "admin-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, moved)

	blob, err := store.Get(ctx, "report/2025-06-01.json")
	require.NoError(t, err)
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(blob, &decoded))
	assert.Len(t, decoded, 3)
	assert.Contains(t, decoded, resolvedID.String())

	remaining, err := reports.ListByContent(ctx, "post", "p-2")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, moderation.ReportPending, remaining[0].Status)

	err = reports.Delete(ctx, resolvedID)
	assert.Error(t, err, "archived reports are purged from the hot store")

	entries, err := auditLog.ListRecent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionArchiveReports, entries[0].Action)
	assert.Equal(t, "3", entries[0].Metadata["archived"])
}

func TestReportArchiverStopsOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	reports := moderation.NewInMemoryReportStore()
	store := NewInMemoryObjectStore()
	store.FailPut = errors.New("bucket unavailable")

	resolvedAt := time.Now()
	require.NoError(t, reports.Add(ctx, moderation.Report{
		ID: id.NewReportID(), ContentType: "post", ContentID: "p-1",
		ReporterID: "u-9", Reason: "spam", Status: moderation.ReportDismissed,
		CreatedAt: resolvedAt.Add(-time.Hour), ResolvedAt: &resolvedAt,
	}))

	archiver := NewReportArchiver(reports, store, nil, discard())
	moved, err := archiver.ArchiveResolved(ctx, "admin-1", 0)
	require.Error(t, err)
	assert.Zero(t, moved)

	remaining, err := reports.ListResolved(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, remaining, 1, "report stays hot when the archive write fails")
}
