package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gradekey/internal/domain"
)

const correctionColumns = `id, exam_id, candidate_id, task_scores, total_points, total_grade,
	percentage_score, comments, support_tips, status, corrected_by, corrected_at, last_modified, version`

// Corrections enforces one row per (exam, candidate) through a unique index
// and optimistic versioning through a compare-and-set on the version column.
type Corrections struct {
	db  *sql.DB
	dup func(error) bool
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *Corrections) FindByExamAndCandidate(ctx context.Context, examID, candidateID string) (domain.CorrectionEntry, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+correctionColumns+` FROM corrections WHERE exam_id = ? AND candidate_id = ?`,
		examID, candidateID)
	return oneEntry(row)
}

func (r *Corrections) FindByID(ctx context.Context, id string) (domain.CorrectionEntry, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+correctionColumns+` FROM corrections WHERE id = ?`, id)
	return oneEntry(row)
}

func (r *Corrections) Create(ctx context.Context, e domain.CorrectionEntry) (domain.CorrectionEntry, error) {
	e.Version = 1
	cols, err := encodeEntry(e)
	if err != nil {
		return domain.CorrectionEntry{}, err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO corrections (`+correctionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, cols...)
	if err != nil {
		if r.dup(err) {
			return domain.CorrectionEntry{}, fmt.Errorf("correction for exam %s candidate %s: %w", e.ExamID, e.CandidateID, domain.ErrConflict)
		}
		return domain.CorrectionEntry{}, err
	}
	return e, nil
}

func (r *Corrections) Update(ctx context.Context, id string, e domain.CorrectionEntry) (domain.CorrectionEntry, error) {
	cur, found, err := r.FindByID(ctx, id)
	if err != nil {
		return domain.CorrectionEntry{}, err
	}
	if !found {
		return domain.CorrectionEntry{}, fmt.Errorf("correction %s: %w", id, domain.ErrNotFound)
	}

	expected := e.Version
	e.ID, e.ExamID, e.CandidateID = id, cur.ExamID, cur.CandidateID
	e.Version = expected + 1
	cols, err := encodeEntry(e)
	if err != nil {
		return domain.CorrectionEntry{}, err
	}
	// cols[3:] skips id, exam_id and candidate_id, which never change.
	args := append(cols[3:], id, expected)
	res, err := r.db.ExecContext(ctx, `UPDATE corrections SET
		task_scores = ?, total_points = ?, total_grade = ?, percentage_score = ?, comments = ?,
		support_tips = ?, status = ?, corrected_by = ?, corrected_at = ?, last_modified = ?, version = ?
		WHERE id = ? AND version = ?`, args...)
	if err != nil {
		return domain.CorrectionEntry{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.CorrectionEntry{}, err
	}
	if n == 0 {
		return domain.CorrectionEntry{}, fmt.Errorf("correction %s: version %d, stored %d: %w", id, expected, cur.Version, domain.ErrConflict)
	}
	return e, nil
}

func (r *Corrections) ListByExam(ctx context.Context, examID string) ([]domain.CorrectionEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+correctionColumns+` FROM corrections WHERE exam_id = ? ORDER BY candidate_id`, examID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

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

func oneEntry(row *sql.Row) (domain.CorrectionEntry, bool, error) {
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CorrectionEntry{}, false, nil
	}
	if err != nil {
		return domain.CorrectionEntry{}, false, err
	}
	return e, true, nil
}

func scanEntry(s scanner) (domain.CorrectionEntry, error) {
	var (
		e                            domain.CorrectionEntry
		tasks, comments, tips, grade string
		status                       string
		correctedBy                  sql.NullString
		correctedAt                  sql.NullInt64
		lastModified                 int64
	)
	err := s.Scan(&e.ID, &e.ExamID, &e.CandidateID, &tasks, &e.TotalPoints, &grade,
		&e.PercentageScore, &comments, &tips, &status, &correctedBy, &correctedAt, &lastModified, &e.Version)
	if err != nil {
		return domain.CorrectionEntry{}, err
	}
	if err := json.Unmarshal([]byte(tasks), &e.TaskScores); err != nil {
		return domain.CorrectionEntry{}, fmt.Errorf("decode task scores of correction %s: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(comments), &e.Comments); err != nil {
		return domain.CorrectionEntry{}, fmt.Errorf("decode comments of correction %s: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(tips), &e.SupportTips); err != nil {
		return domain.CorrectionEntry{}, fmt.Errorf("decode support tips of correction %s: %w", e.ID, err)
	}
	e.TotalGrade = domain.Grade(grade)
	e.Status = domain.CorrectionStatus(status)
	e.CorrectedBy = stringPtr(correctedBy)
	if correctedAt.Valid {
		t := fromNanos(correctedAt.Int64)
		e.CorrectedAt = &t
	}
	e.LastModified = fromNanos(lastModified)
	return e, nil
}

// encodeEntry returns the column values in correctionColumns order.
func encodeEntry(e domain.CorrectionEntry) ([]any, error) {
	tasks, err := marshalList(e.TaskScores)
	if err != nil {
		return nil, err
	}
	comments, err := marshalList(e.Comments)
	if err != nil {
		return nil, err
	}
	tips, err := marshalList(e.SupportTips)
	if err != nil {
		return nil, err
	}
	var correctedAt sql.NullInt64
	if e.CorrectedAt != nil {
		correctedAt = sql.NullInt64{Int64: e.CorrectedAt.UnixNano(), Valid: true}
	}
	return []any{
		e.ID, e.ExamID, e.CandidateID, tasks, e.TotalPoints, string(e.TotalGrade),
		e.PercentageScore, comments, tips, string(e.Status), nullString(e.CorrectedBy), correctedAt,
		e.LastModified.UnixNano(), e.Version,
	}, nil
}

// marshalList stores nil slices as empty JSON arrays.
func marshalList[T any](v []T) (string, error) {
	if v == nil {
		v = []T{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
