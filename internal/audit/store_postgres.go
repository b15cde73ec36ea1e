package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"warden/internal/retention"
	id "warden/pkg/domain"
)

// PostgresStore is the production admin action log.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the backing table if missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS admin_action_log (
			id         UUID PRIMARY KEY,
			actor      TEXT NOT NULL,
			action     TEXT NOT NULL,
			target     TEXT NOT NULL,
			reason     TEXT NOT NULL DEFAULT '',
			metadata   JSONB,
			ts         TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS admin_action_log_actor_ts ON admin_action_log (actor, ts);
		CREATE INDEX IF NOT EXISTS admin_action_log_expires ON admin_action_log (expires_at);
	`)
	if err != nil {
		return fmt.Errorf("migrate admin_action_log: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	var meta []byte
	if entry.Metadata != nil {
		var err error
		if meta, err = json.Marshal(entry.Metadata); err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO admin_action_log (id, actor, action, target, reason, metadata, ts, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.Actor.String(), string(entry.Action), entry.Target,
		entry.Reason, meta, entry.Timestamp, entry.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByActor(ctx context.Context, actor string, limit int) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, actor, action, target, reason, metadata, ts, expires_at
		FROM admin_action_log WHERE actor = $1 ORDER BY ts DESC LIMIT $2`,
		actor, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit by actor: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, actor, action, target, reason, metadata, ts, expires_at
		FROM admin_action_log ORDER BY ts DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent audit: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) CountSince(ctx context.Context, actor string, since time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM admin_action_log WHERE actor = $1 AND ts >= $2`,
		actor, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count audit since: %w", err)
	}
	return count, nil
}

// Entity implements retention.Source.
func (s *PostgresStore) Entity() string { return "admin_action_log" }

// ListExpired implements retention.Source.
func (s *PostgresStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]retention.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, actor, action, target, reason, metadata, ts, expires_at
		FROM admin_action_log WHERE expires_at <= $1 ORDER BY expires_at LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list expired audit: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	out := make([]retention.Record, 0, len(entries))
	for _, e := range entries {
		payload, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		out = append(out, retention.Record{Key: e.ID.String(), Payload: payload})
	}
	return out, nil
}

// DeleteByKey implements retention.Source.
func (s *PostgresStore) DeleteByKey(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM admin_action_log WHERE id = $1`, key)
	if err != nil {
		return fmt.Errorf("delete audit entry: %w", err)
	}
	return nil
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEntries(rows pgxRows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var (
			e     Entry
			actor string
			act   string
			meta  []byte
		)
		if err := rows.Scan(&e.ID, &actor, &act, &e.Target, &e.Reason, &meta, &e.Timestamp, &e.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Actor = id.UserID(actor)
		e.Action = ActionType(act)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
