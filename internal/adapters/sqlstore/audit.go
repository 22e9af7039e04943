package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"gradekey/internal/domain"
)

// AuditLog is an append-only table of grading key changes. The seq column
// preserves append order within a key.
type AuditLog struct {
	db *sql.DB
}

func (l *AuditLog) Append(ctx context.Context, keyID string, rec domain.ChangeRecord) error {
	prev, err := json.Marshal(rec.PreviousKey)
	if err != nil {
		return err
	}
	next, err := json.Marshal(rec.NewKey)
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx, `INSERT INTO grading_key_changes
		(id, key_id, changed_at, previous_key, new_key, reason, changed_by)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, keyID, rec.Timestamp.UnixNano(), string(prev), string(next),
		nullString(rec.Reason), nullString(rec.ChangedBy))
	return err
}

func (l *AuditLog) History(ctx context.Context, keyID string) ([]domain.ChangeRecord, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT id, changed_at, previous_key, new_key, reason, changed_by
		FROM grading_key_changes WHERE key_id = ? ORDER BY seq`, keyID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []domain.ChangeRecord{}
	for rows.Next() {
		var (
			rec               domain.ChangeRecord
			changedAt         int64
			prev, next        string
			reason, changedBy sql.NullString
		)
		if err := rows.Scan(&rec.ID, &changedAt, &prev, &next, &reason, &changedBy); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(prev), &rec.PreviousKey); err != nil {
			return nil, fmt.Errorf("decode change %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(next), &rec.NewKey); err != nil {
			return nil, fmt.Errorf("decode change %s: %w", rec.ID, err)
		}
		rec.Timestamp = fromNanos(changedAt)
		rec.Reason = stringPtr(reason)
		rec.ChangedBy = stringPtr(changedBy)
		out = append(out, rec)
	}
	return out, rows.Err()
}
