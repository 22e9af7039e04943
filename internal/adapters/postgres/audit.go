package postgres

import (
	"context"

	"gradekey/internal/domain"
)

// AuditLog appends grading key changes; seq preserves insertion order.
type AuditLog struct {
	db *DB
}

func (l *AuditLog) Append(ctx context.Context, keyID string, rec domain.ChangeRecord) error {
	_, err := l.db.Pool.Exec(ctx, `INSERT INTO grading_key_changes
		(id, key_id, changed_at, previous_key, new_key, reason, changed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, keyID, rec.Timestamp, rec.PreviousKey, rec.NewKey, rec.Reason, rec.ChangedBy)
	return err
}

func (l *AuditLog) History(ctx context.Context, keyID string) ([]domain.ChangeRecord, error) {
	rows, err := l.db.Pool.Query(ctx, `SELECT id, changed_at, previous_key, new_key, reason, changed_by
		FROM grading_key_changes WHERE key_id = $1 ORDER BY seq`, keyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.ChangeRecord{}
	for rows.Next() {
		var rec domain.ChangeRecord
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.PreviousKey, &rec.NewKey, &rec.Reason, &rec.ChangedBy); err != nil {
			return nil, err
		}
		rec.Timestamp = rec.Timestamp.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
