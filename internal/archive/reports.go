package archive

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	"warden/internal/audit"
	"warden/internal/moderation"
	id "warden/pkg/domain"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/sentinel"
	"warden/pkg/requestcontext"
)

// ReportArchiver is the on-demand batch operation: move already-resolved
// report records into the cold archive and purge them from the hot store.
// Archive-before-purge keeps the never-in-neither guarantee; a failed archive
// write leaves the report hot and stops the batch.
type ReportArchiver struct {
	reports moderation.ReportStore
	store   ObjectStore
	auditor *audit.Publisher
	logger  *slog.Logger
}

func NewReportArchiver(reports moderation.ReportStore, store ObjectStore, auditor *audit.Publisher, logger *slog.Logger) *ReportArchiver {
	return &ReportArchiver{reports: reports, store: store, auditor: auditor, logger: logger}
}

const defaultBatchLimit = 500

// ArchiveResolved archives and purges up to limit resolved reports, returning
// how many were moved.
func (a *ReportArchiver) ArchiveResolved(ctx context.Context, adminID id.UserID, limit int) (int, error) {
	if limit <= 0 || limit > defaultBatchLimit {
		limit = defaultBatchLimit
	}
	resolved, err := a.reports.ListResolved(ctx, limit)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeExternal, "resolved report lookup failed")
	}

	moved := 0
	for _, r := range resolved {
		payload, err := json.Marshal(r)
		if err != nil {
			return moved, dErrors.Wrap(err, dErrors.CodeInternal, "encode report")
		}
		day := r.CreatedAt
		if r.ResolvedAt != nil {
			day = *r.ResolvedAt
		}
		if err := Merge(ctx, a.store, "report", day, r.ID.String(), payload); err != nil {
			return moved, dErrors.Wrap(err, dErrors.CodeExternal, "report archive write failed")
		}
		if err := a.reports.Delete(ctx, r.ID); err != nil {
			// Already-archived and already-gone is fine; anything else
			// stops the batch.
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return moved, dErrors.Wrap(err, dErrors.CodeExternal, "report purge failed")
		}
		moved++
	}

	if a.auditor != nil {
		a.auditor.Emit(ctx, audit.Entry{
			Actor:  adminID,
			Action: audit.ActionArchiveReports,
			Target: "reports",
			Metadata: map[string]string{
				"archived": strconv.Itoa(moved),
			},
		})
	}
	a.logger.InfoContext(ctx, "resolved reports archived",
		"count", moved,
		"requested_limit", limit,
		"at", requestcontext.Now(ctx),
	)
	return moved, nil
}
