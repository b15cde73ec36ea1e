package appeal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"warden/internal/retention"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// PostgresStore is the production appeal store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the backing table if missing. The partial unique index is
// what enforces the single-pending rule under concurrency.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS appeals (
			id           UUID PRIMARY KEY,
			user_id      TEXT NOT NULL,
			appeal_type  TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT '',
			content_id   TEXT NOT NULL DEFAULT '',
			reason       TEXT NOT NULL,
			status       TEXT NOT NULL,
			snapshot     JSONB NOT NULL,
			submitted_at TIMESTAMPTZ NOT NULL,
			reviewed_by  TEXT NOT NULL DEFAULT '',
			reviewed_at  TIMESTAMPTZ,
			review_notes TEXT NOT NULL DEFAULT '',
			retain_until TIMESTAMPTZ NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS appeals_single_pending
			ON appeals (user_id, appeal_type, content_type, content_id)
			WHERE status = 'pending';
		CREATE INDEX IF NOT EXISTS appeals_status ON appeals (status, submitted_at);
		CREATE INDEX IF NOT EXISTS appeals_retain ON appeals (retain_until);
	`)
	if err != nil {
		return fmt.Errorf("migrate appeals: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, a *Appeal) error {
	snapshot, err := json.Marshal(a.Snapshot)
	if err != nil {
		return fmt.Errorf("encode appeal snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO appeals (id, user_id, appeal_type, content_type, content_id, reason,
			status, snapshot, submitted_at, reviewed_by, reviewed_at, review_notes, retain_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.UUID(a.ID), a.UserID.String(), string(a.Type), a.ContentType, a.ContentID,
		a.Reason, string(a.Status), snapshot, a.SubmittedAt,
		a.ReviewedBy.String(), a.ReviewedAt, a.ReviewNotes, a.RetainUntil,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert appeal: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, appealID id.AppealID) (*Appeal, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, appeal_type, content_type, content_id, reason,
		       status, snapshot, submitted_at, reviewed_by, reviewed_at, review_notes, retain_until
		FROM appeals WHERE id = $1`,
		uuid.UUID(appealID),
	)
	a, err := scanAppeal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appeal: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) Update(ctx context.Context, a *Appeal) error {
	snapshot, err := json.Marshal(a.Snapshot)
	if err != nil {
		return fmt.Errorf("encode appeal snapshot: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE appeals SET status = $2, snapshot = $3, reviewed_by = $4,
			reviewed_at = $5, review_notes = $6, retain_until = $7
		WHERE id = $1`,
		uuid.UUID(a.ID), string(a.Status), snapshot,
		a.ReviewedBy.String(), a.ReviewedAt, a.ReviewNotes, a.RetainUntil,
	)
	if err != nil {
		return fmt.Errorf("update appeal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status Status, limit int) ([]*Appeal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, appeal_type, content_type, content_id, reason,
		       status, snapshot, submitted_at, reviewed_by, reviewed_at, review_notes, retain_until
		FROM appeals WHERE status = $1 ORDER BY submitted_at LIMIT $2`,
		string(status), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list appeals by status: %w", err)
	}
	defer rows.Close()
	return scanAppeals(rows)
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID) ([]*Appeal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, appeal_type, content_type, content_id, reason,
		       status, snapshot, submitted_at, reviewed_by, reviewed_at, review_notes, retain_until
		FROM appeals WHERE user_id = $1 ORDER BY submitted_at`,
		userID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list appeals by user: %w", err)
	}
	defer rows.Close()
	return scanAppeals(rows)
}

// Entity implements retention.Source.
func (s *PostgresStore) Entity() string { return "appeal" }

// ListExpired implements retention.Source. Pending appeals are never reaped.
func (s *PostgresStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]retention.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, appeal_type, content_type, content_id, reason,
		       status, snapshot, submitted_at, reviewed_by, reviewed_at, review_notes, retain_until
		FROM appeals WHERE status <> 'pending' AND retain_until <= $1
		ORDER BY retain_until LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list expired appeals: %w", err)
	}
	defer rows.Close()

	appeals, err := scanAppeals(rows)
	if err != nil {
		return nil, err
	}
	out := make([]retention.Record, 0, len(appeals))
	for _, a := range appeals {
		payload, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		out = append(out, retention.Record{Key: a.ID.String(), Payload: payload})
	}
	return out, nil
}

// DeleteByKey implements retention.Source.
func (s *PostgresStore) DeleteByKey(ctx context.Context, key string) error {
	appealID, err := id.ParseAppealID(key)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `DELETE FROM appeals WHERE id = $1`, uuid.UUID(appealID))
	if err != nil {
		return fmt.Errorf("delete appeal: %w", err)
	}
	return nil
}

func scanAppeal(row pgx.Row) (*Appeal, error) {
	var (
		a          Appeal
		appealID   uuid.UUID
		user       string
		appealType string
		status     string
		snapshot   []byte
		reviewedBy string
	)
	err := row.Scan(&appealID, &user, &appealType, &a.ContentType, &a.ContentID, &a.Reason,
		&status, &snapshot, &a.SubmittedAt, &reviewedBy, &a.ReviewedAt, &a.ReviewNotes, &a.RetainUntil)
	if err != nil {
		return nil, err
	}
	a.ID = id.AppealID(appealID)
	a.UserID = id.UserID(user)
	a.Type = Type(appealType)
	a.Status = Status(status)
	a.ReviewedBy = id.UserID(reviewedBy)
	if err := json.Unmarshal(snapshot, &a.Snapshot); err != nil {
		return nil, fmt.Errorf("decode appeal snapshot: %w", err)
	}
	return &a, nil
}

func scanAppeals(rows pgx.Rows) ([]*Appeal, error) {
	var out []*Appeal
	for rows.Next() {
		a, err := scanAppeal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appeal: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
