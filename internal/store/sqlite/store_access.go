package sqlite

import (
	"context"
	"time"

	"github.com/koltyakov/posbridge/internal/domain"
)

const defaultListLimit = 100

// RecordAccessEvent appends one allowlist decision.
func (s *Store) RecordAccessEvent(ctx context.Context, evt domain.AccessEvent) error {
	createdAt := evt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.insertEventStmt.ExecContext(ctx, evt.RemoteIP, boolToInt(evt.Allowed), createdAt.UTC())
	return err
}

// ListAccessEvents returns the newest decisions first. When deniedOnly is
// set, granted decisions are skipped.
func (s *Store) ListAccessEvents(ctx context.Context, limit int, deniedOnly bool) ([]domain.AccessEvent, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `SELECT id, remote_ip, allowed, created_at FROM access_events`
	if deniedOnly {
		query += ` WHERE allowed = 0`
	}
	query += ` ORDER BY id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []domain.AccessEvent
	for rows.Next() {
		var (
			evt     domain.AccessEvent
			allowed int
		)
		if err := rows.Scan(&evt.ID, &evt.RemoteIP, &allowed, &evt.CreatedAt); err != nil {
			return nil, err
		}
		evt.Allowed = allowed != 0
		out = append(out, evt)
	}
	return out, rows.Err()
}

// PurgeAccessEventsBefore deletes decisions recorded before cutoff and
// returns how many rows were removed.
func (s *Store) PurgeAccessEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM access_events WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
