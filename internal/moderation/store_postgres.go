package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"warden/internal/retention"
	id "warden/pkg/domain"
	"warden/pkg/platform/sentinel"
)

// PostgresViolationStore is the production violation evidence store.
type PostgresViolationStore struct {
	pool *pgxpool.Pool
}

func NewPostgresViolationStore(pool *pgxpool.Pool) *PostgresViolationStore {
	return &PostgresViolationStore{pool: pool}
}

func (s *PostgresViolationStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS violations (
			id           UUID PRIMARY KEY,
			user_id      TEXT NOT NULL,
			content_type TEXT NOT NULL,
			content_id   TEXT NOT NULL,
			severity     TEXT NOT NULL,
			reason       TEXT NOT NULL,
			admin_id     TEXT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS violations_user ON violations (user_id, created_at);
		CREATE INDEX IF NOT EXISTS violations_content ON violations (content_type, content_id);
	`)
	if err != nil {
		return fmt.Errorf("migrate violations: %w", err)
	}
	return nil
}

func (s *PostgresViolationStore) Add(ctx context.Context, v Violation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO violations (id, user_id, content_type, content_id, severity, reason, admin_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(v.ID), v.UserID.String(), v.ContentType, v.ContentID,
		string(v.Severity), v.Reason, v.AdminID.String(), v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert violation: %w", err)
	}
	return nil
}

func (s *PostgresViolationStore) ListByUser(ctx context.Context, userID id.UserID) ([]Violation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, content_type, content_id, severity, reason, admin_id, created_at
		FROM violations WHERE user_id = $1 ORDER BY created_at`,
		userID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	defer rows.Close()

	var out []Violation
	for rows.Next() {
		var (
			v        Violation
			vid      uuid.UUID
			user     string
			severity string
			admin    string
		)
		if err := rows.Scan(&vid, &user, &v.ContentType, &v.ContentID, &severity, &v.Reason, &admin, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan violation: %w", err)
		}
		v.ID = id.ViolationID(vid)
		v.UserID = id.UserID(user)
		v.Severity = Severity(severity)
		v.AdminID = id.UserID(admin)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresViolationStore) CountByContent(ctx context.Context, contentType, contentID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM violations WHERE content_type = $1 AND content_id = $2`,
		contentType, contentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count violations: %w", err)
	}
	return count, nil
}

// PostgresContentStore is the production moderation-state store for content.
type PostgresContentStore struct {
	pool *pgxpool.Pool
}

func NewPostgresContentStore(pool *pgxpool.Pool) *PostgresContentStore {
	return &PostgresContentStore{pool: pool}
}

func (s *PostgresContentStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS content_moderation (
			content_type       TEXT NOT NULL,
			content_id         TEXT NOT NULL,
			author_id          TEXT NOT NULL,
			status             TEXT NOT NULL,
			hidden_reason      TEXT NOT NULL DEFAULT '',
			hidden_at          TIMESTAMPTZ,
			can_appeal         BOOLEAN NOT NULL DEFAULT FALSE,
			appeal_deadline    TIMESTAMPTZ,
			purge_at           TIMESTAMPTZ,
			last_action        TEXT NOT NULL DEFAULT '',
			last_action_reason TEXT NOT NULL DEFAULT '',
			last_action_by     TEXT NOT NULL DEFAULT '',
			last_action_at     TIMESTAMPTZ,
			PRIMARY KEY (content_type, content_id)
		);
		CREATE INDEX IF NOT EXISTS content_moderation_purge ON content_moderation (purge_at)
			WHERE purge_at IS NOT NULL;
	`)
	if err != nil {
		return fmt.Errorf("migrate content_moderation: %w", err)
	}
	return nil
}

func (s *PostgresContentStore) Get(ctx context.Context, contentType, contentID string) (*Content, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT content_type, content_id, author_id, status, hidden_reason, hidden_at,
		       can_appeal, appeal_deadline, purge_at,
		       last_action, last_action_reason, last_action_by, last_action_at
		FROM content_moderation WHERE content_type = $1 AND content_id = $2`,
		contentType, contentID,
	)
	c, err := scanContent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}
	return c, nil
}

func (s *PostgresContentStore) Put(ctx context.Context, c *Content) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO content_moderation (
			content_type, content_id, author_id, status, hidden_reason, hidden_at,
			can_appeal, appeal_deadline, purge_at,
			last_action, last_action_reason, last_action_by, last_action_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (content_type, content_id) DO UPDATE SET
			author_id = EXCLUDED.author_id,
			status = EXCLUDED.status,
			hidden_reason = EXCLUDED.hidden_reason,
			hidden_at = EXCLUDED.hidden_at,
			can_appeal = EXCLUDED.can_appeal,
			appeal_deadline = EXCLUDED.appeal_deadline,
			purge_at = EXCLUDED.purge_at,
			last_action = EXCLUDED.last_action,
			last_action_reason = EXCLUDED.last_action_reason,
			last_action_by = EXCLUDED.last_action_by,
			last_action_at = EXCLUDED.last_action_at`,
		c.ContentType, c.ContentID, c.AuthorID.String(), string(c.Status),
		c.HiddenReason, c.HiddenAt, c.CanAppeal, c.AppealDeadline, c.PurgeAt,
		string(c.LastAction), c.LastActionReason, c.LastActionBy.String(), c.LastActionAt,
	)
	if err != nil {
		return fmt.Errorf("upsert content: %w", err)
	}
	return nil
}

// Entity implements retention.Source.
func (s *PostgresContentStore) Entity() string { return "content" }

// ListExpired implements retention.Source.
func (s *PostgresContentStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]retention.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT content_type, content_id, author_id, status, hidden_reason, hidden_at,
		       can_appeal, appeal_deadline, purge_at,
		       last_action, last_action_reason, last_action_by, last_action_at
		FROM content_moderation
		WHERE status = 'hidden' AND purge_at IS NOT NULL AND purge_at <= $1
		ORDER BY purge_at LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list expired content: %w", err)
	}
	defer rows.Close()

	var out []retention.Record
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired content: %w", err)
		}
		payload, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		out = append(out, retention.Record{Key: contentKey(c.ContentType, c.ContentID), Payload: payload})
	}
	return out, rows.Err()
}

// DeleteByKey implements retention.Source. Keys are contentType/contentID.
func (s *PostgresContentStore) DeleteByKey(ctx context.Context, key string) error {
	contentType, contentID, ok := splitContentKey(key)
	if !ok {
		return fmt.Errorf("malformed content key %q", key)
	}
	_, err := s.pool.Exec(ctx, `
		DELETE FROM content_moderation WHERE content_type = $1 AND content_id = $2`,
		contentType, contentID,
	)
	if err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	return nil
}

func scanContent(row pgx.Row) (*Content, error) {
	var (
		c      Content
		author string
		status string
		action string
		by     string
	)
	err := row.Scan(&c.ContentType, &c.ContentID, &author, &status, &c.HiddenReason, &c.HiddenAt,
		&c.CanAppeal, &c.AppealDeadline, &c.PurgeAt,
		&action, &c.LastActionReason, &by, &c.LastActionAt)
	if err != nil {
		return nil, err
	}
	c.AuthorID = id.UserID(author)
	c.Status = ContentStatus(status)
	c.LastAction = Action(action)
	c.LastActionBy = id.UserID(by)
	return &c, nil
}

func splitContentKey(key string) (contentType, contentID string, ok bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			return key[:i], key[i+1:], key[i+1:] != ""
		}
	}
	return "", "", false
}

// PostgresReportStore is the production report store.
type PostgresReportStore struct {
	pool *pgxpool.Pool
}

func NewPostgresReportStore(pool *pgxpool.Pool) *PostgresReportStore {
	return &PostgresReportStore{pool: pool}
}

func (s *PostgresReportStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS reports (
			id           UUID PRIMARY KEY,
			content_type TEXT NOT NULL,
			content_id   TEXT NOT NULL,
			reporter_id  TEXT NOT NULL,
			reason       TEXT NOT NULL,
			status       TEXT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL,
			resolved_at  TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS reports_content ON reports (content_type, content_id);
		CREATE INDEX IF NOT EXISTS reports_status ON reports (status, created_at);
	`)
	if err != nil {
		return fmt.Errorf("migrate reports: %w", err)
	}
	return nil
}

func (s *PostgresReportStore) Add(ctx context.Context, r Report) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reports (id, content_type, content_id, reporter_id, reason, status, created_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(r.ID), r.ContentType, r.ContentID, r.ReporterID.String(),
		r.Reason, string(r.Status), r.CreatedAt, r.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (s *PostgresReportStore) ListByContent(ctx context.Context, contentType, contentID string) ([]Report, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, content_type, content_id, reporter_id, reason, status, created_at, resolved_at
		FROM reports WHERE content_type = $1 AND content_id = $2 ORDER BY created_at`,
		contentType, contentID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()
	return scanReports(rows)
}

func (s *PostgresReportStore) CloseOpen(ctx context.Context, contentType, contentID string, status ReportStatus, resolvedAt time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE reports SET status = $1, resolved_at = $2
		WHERE content_type = $3 AND content_id = $4 AND status = 'pending'`,
		string(status), resolvedAt, contentType, contentID,
	)
	if err != nil {
		return 0, fmt.Errorf("close reports: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresReportStore) ListResolved(ctx context.Context, limit int) ([]Report, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, content_type, content_id, reporter_id, reason, status, created_at, resolved_at
		FROM reports WHERE status <> 'pending' ORDER BY created_at LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list resolved reports: %w", err)
	}
	defer rows.Close()
	return scanReports(rows)
}

func (s *PostgresReportStore) Delete(ctx context.Context, reportID id.ReportID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM reports WHERE id = $1`, uuid.UUID(reportID))
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanReports(rows pgx.Rows) ([]Report, error) {
	var out []Report
	for rows.Next() {
		var (
			r        Report
			rid      uuid.UUID
			reporter string
			status   string
		)
		if err := rows.Scan(&rid, &r.ContentType, &r.ContentID, &reporter, &r.Reason, &status, &r.CreatedAt, &r.ResolvedAt); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r.ID = id.ReportID(rid)
		r.ReporterID = id.UserID(reporter)
		r.Status = ReportStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}
