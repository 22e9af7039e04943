package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"gradekey/internal/domain"
)

// Exams stores each exam's grading key as a jsonb document.
type Exams struct {
	db *DB
}

func (r *Exams) FindByID(ctx context.Context, examID string) (domain.Exam, bool, error) {
	var exam domain.Exam
	err := r.db.Pool.QueryRow(ctx, `SELECT id, title, grading_key FROM exams WHERE id = $1`, examID).
		Scan(&exam.ID, &exam.Title, &exam.GradingKey)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Exam{}, false, nil
	}
	if err != nil {
		return domain.Exam{}, false, err
	}
	return exam, true, nil
}

func (r *Exams) Create(ctx context.Context, exam domain.Exam) error {
	_, err := r.db.Pool.Exec(ctx, `INSERT INTO exams (id, title, grading_key, key_version) VALUES ($1, $2, $3, $4)`,
		exam.ID, exam.Title, exam.GradingKey, exam.GradingKey.Version)
	if isUniqueViolation(err) {
		return fmt.Errorf("exam %s: %w", exam.ID, domain.ErrConflict)
	}
	return err
}

func (r *Exams) UpdateGradingKey(ctx context.Context, examID string, key domain.GradingKey, expectedVersion int) error {
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE exams SET grading_key = $2, key_version = $3 WHERE id = $1 AND key_version = $4`,
		examID, key, key.Version, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var stored int
	err = r.db.Pool.QueryRow(ctx, `SELECT key_version FROM exams WHERE id = $1`, examID).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("exam %s: %w", examID, domain.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("grading key of exam %s: expected version %d, stored %d: %w",
		examID, expectedVersion, stored, domain.ErrConflict)
}
