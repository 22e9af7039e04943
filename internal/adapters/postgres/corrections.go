package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"gradekey/internal/domain"
)

const correctionColumns = `id, exam_id, candidate_id, task_scores, total_points, total_grade,
	percentage_score, comments, support_tips, status, corrected_by, corrected_at, last_modified, version`

// Corrections relies on the (exam_id, candidate_id) unique constraint for
// one-entry-per-pair and on a version compare-and-set for updates.
type Corrections struct {
	db *DB
}

func (r *Corrections) FindByExamAndCandidate(ctx context.Context, examID, candidateID string) (domain.CorrectionEntry, bool, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+correctionColumns+` FROM corrections
		WHERE exam_id = $1 AND candidate_id = $2`, examID, candidateID)
	return oneEntry(row)
}

func (r *Corrections) FindByID(ctx context.Context, id string) (domain.CorrectionEntry, bool, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+correctionColumns+` FROM corrections WHERE id = $1`, id)
	return oneEntry(row)
}

func (r *Corrections) Create(ctx context.Context, e domain.CorrectionEntry) (domain.CorrectionEntry, error) {
	e = withLists(e)
	e.Version = 1
	_, err := r.db.Pool.Exec(ctx, `INSERT INTO corrections (`+correctionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.ID, e.ExamID, e.CandidateID, e.TaskScores, e.TotalPoints, string(e.TotalGrade),
		e.PercentageScore, e.Comments, e.SupportTips, string(e.Status), e.CorrectedBy, e.CorrectedAt,
		e.LastModified, e.Version)
	if isUniqueViolation(err) {
		return domain.CorrectionEntry{}, fmt.Errorf("correction for exam %s candidate %s: %w", e.ExamID, e.CandidateID, domain.ErrConflict)
	}
	if err != nil {
		return domain.CorrectionEntry{}, err
	}
	return e, nil
}

// Update writes e if the stored version still equals e.Version.
func (r *Corrections) Update(ctx context.Context, id string, e domain.CorrectionEntry) (domain.CorrectionEntry, error) {
	e = withLists(e)
	expected := e.Version
	row := r.db.Pool.QueryRow(ctx, `UPDATE corrections SET
		task_scores = $3, total_points = $4, total_grade = $5, percentage_score = $6, comments = $7,
		support_tips = $8, status = $9, corrected_by = $10, corrected_at = $11, last_modified = $12,
		version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING `+correctionColumns,
		id, expected, e.TaskScores, e.TotalPoints, string(e.TotalGrade), e.PercentageScore,
		e.Comments, e.SupportTips, string(e.Status), e.CorrectedBy, e.CorrectedAt, e.LastModified)
	updated, found, err := oneEntry(row)
	if err != nil {
		return domain.CorrectionEntry{}, err
	}
	if found {
		return updated, nil
	}

	var stored int
	err = r.db.Pool.QueryRow(ctx, `SELECT version FROM corrections WHERE id = $1`, id).Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CorrectionEntry{}, fmt.Errorf("correction %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.CorrectionEntry{}, err
	}
	return domain.CorrectionEntry{}, fmt.Errorf("correction %s: version %d, stored %d: %w", id, expected, stored, domain.ErrConflict)
}

func (r *Corrections) ListByExam(ctx context.Context, examID string) ([]domain.CorrectionEntry, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+correctionColumns+` FROM corrections
		WHERE exam_id = $1 ORDER BY candidate_id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.CorrectionEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func oneEntry(row pgx.Row) (domain.CorrectionEntry, bool, error) {
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CorrectionEntry{}, false, nil
	}
	if err != nil {
		return domain.CorrectionEntry{}, false, err
	}
	return e, true, nil
}

func scanEntry(row pgx.Row) (domain.CorrectionEntry, error) {
	var (
		e             domain.CorrectionEntry
		grade, status string
		correctedAt   *time.Time
	)
	err := row.Scan(&e.ID, &e.ExamID, &e.CandidateID, &e.TaskScores, &e.TotalPoints, &grade,
		&e.PercentageScore, &e.Comments, &e.SupportTips, &status, &e.CorrectedBy, &correctedAt,
		&e.LastModified, &e.Version)
	if err != nil {
		return domain.CorrectionEntry{}, err
	}
	e.TotalGrade = domain.Grade(grade)
	e.Status = domain.CorrectionStatus(status)
	e.LastModified = e.LastModified.UTC()
	if correctedAt != nil {
		t := correctedAt.UTC()
		e.CorrectedAt = &t
	}
	return e, nil
}

// withLists replaces nil lists so they are stored as [] rather than null.
func withLists(e domain.CorrectionEntry) domain.CorrectionEntry {
	if e.TaskScores == nil {
		e.TaskScores = []domain.TaskScore{}
	}
	if e.Comments == nil {
		e.Comments = []domain.Comment{}
	}
	if e.SupportTips == nil {
		e.SupportTips = []domain.SupportTip{}
	}
	return e
}
