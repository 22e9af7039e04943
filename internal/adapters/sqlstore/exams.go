package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"gradekey/internal/domain"
)

// Exams stores each exam's grading key as a JSON document.
type Exams struct {
	db *sql.DB
}

func (r *Exams) FindByID(ctx context.Context, examID string) (domain.Exam, bool, error) {
	var exam domain.Exam
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT id, title, grading_key FROM exams WHERE id = ?`, examID).
		Scan(&exam.ID, &exam.Title, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Exam{}, false, nil
	}
	if err != nil {
		return domain.Exam{}, false, err
	}
	if err := json.Unmarshal([]byte(raw), &exam.GradingKey); err != nil {
		return domain.Exam{}, false, fmt.Errorf("decode grading key of exam %s: %w", examID, err)
	}
	return exam, true, nil
}

func (r *Exams) Create(ctx context.Context, exam domain.Exam) error {
	raw, err := json.Marshal(exam.GradingKey)
	if err != nil {
		return err
	}
	// Check first so the conflict does not depend on driver error codes.
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exams WHERE id = ?`, exam.ID).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("exam %s: %w", exam.ID, domain.ErrConflict)
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO exams (id, title, grading_key, key_version) VALUES (?, ?, ?, ?)`,
		exam.ID, exam.Title, string(raw), exam.GradingKey.Version)
	return err
}

func (r *Exams) UpdateGradingKey(ctx context.Context, examID string, key domain.GradingKey, expectedVersion int) error {
	raw, err := json.Marshal(key)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE exams SET grading_key = ?, key_version = ? WHERE id = ? AND key_version = ?`,
		string(raw), key.Version, examID, expectedVersion)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return r.notUpdated(ctx, examID, expectedVersion)
	}
	return nil
}

// notUpdated explains a zero-row update: an unknown exam, a key at another
// version, or (MySQL) a row whose stored values were already identical.
func (r *Exams) notUpdated(ctx context.Context, examID string, expectedVersion int) error {
	var stored int
	err := r.db.QueryRowContext(ctx, `SELECT key_version FROM exams WHERE id = ?`, examID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("exam %s: %w", examID, domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if stored != expectedVersion {
		return fmt.Errorf("grading key of exam %s: expected version %d, stored %d: %w",
			examID, expectedVersion, stored, domain.ErrConflict)
	}
	return nil
}
