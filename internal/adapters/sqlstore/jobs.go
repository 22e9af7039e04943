package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gradekey/internal/domain"
	"gradekey/internal/ports"
)

// Jobs is a regrade queue table. Claims use a conditional update on the
// status column so that concurrent workers never run the same job.
type Jobs struct {
	db *sql.DB
}

func (q *Jobs) Enqueue(ctx context.Context, examID string) (string, error) {
	id := uuid.NewString()
	_, err := q.db.ExecContext(ctx, `INSERT INTO regrade_jobs (id, exam_id, status, queued_at) VALUES (?, ?, ?, ?)`,
		id, examID, ports.JobQueued, time.Now().UnixNano())
	if err != nil {
		return "", err
	}
	return id, nil
}

// ClaimNext marks the oldest queued job running. A job taken by another
// worker between select and update is skipped.
func (q *Jobs) ClaimNext(ctx context.Context) (ports.RegradeJob, bool, error) {
	for {
		var job ports.RegradeJob
		err := q.db.QueryRowContext(ctx, `SELECT id, exam_id FROM regrade_jobs
			WHERE status = ? ORDER BY queued_at, id LIMIT 1`, ports.JobQueued).Scan(&job.ID, &job.ExamID)
		if errors.Is(err, sql.ErrNoRows) {
			return ports.RegradeJob{}, false, nil
		}
		if err != nil {
			return ports.RegradeJob{}, false, err
		}
		ok, err := q.set(ctx, job.ID, ports.JobQueued, ports.JobRunning, "")
		if err != nil {
			return ports.RegradeJob{}, false, err
		}
		if ok {
			return job, true, nil
		}
	}
}

func (q *Jobs) StartJob(ctx context.Context, jobID string) error {
	return q.transition(ctx, jobID, ports.JobQueued, ports.JobRunning, "")
}

func (q *Jobs) MarkCompleted(ctx context.Context, jobID string) error {
	return q.transition(ctx, jobID, ports.JobRunning, ports.JobCompleted, "")
}

func (q *Jobs) MarkFailed(ctx context.Context, jobID string, reason string) error {
	return q.transition(ctx, jobID, ports.JobRunning, ports.JobFailed, reason)
}

func (q *Jobs) Status(ctx context.Context, jobID string) (string, error) {
	var status string
	err := q.db.QueryRowContext(ctx, `SELECT status FROM regrade_jobs WHERE id = ?`, jobID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}
	return status, err
}

func (q *Jobs) transition(ctx context.Context, jobID, from, to, reason string) error {
	ok, err := q.set(ctx, jobID, from, to, reason)
	if err != nil || ok {
		return err
	}
	status, err := q.Status(ctx, jobID)
	if err != nil {
		return err
	}
	return fmt.Errorf("job %s is %s, not %s: %w", jobID, status, from, domain.ErrConflict)
}

func (q *Jobs) set(ctx context.Context, jobID, from, to, reason string) (bool, error) {
	now := time.Now().UnixNano()
	var query string
	var args []any
	switch to {
	case ports.JobRunning:
		query = `UPDATE regrade_jobs SET status = ?, started_at = ?, attempts = attempts + 1 WHERE id = ? AND status = ?`
		args = []any{to, now, jobID, from}
	default:
		query = `UPDATE regrade_jobs SET status = ?, reason = ?, finished_at = ? WHERE id = ? AND status = ?`
		args = []any{to, sql.NullString{String: reason, Valid: reason != ""}, now, jobID, from}
	}
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
