package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"gradekey/internal/domain"
	"gradekey/internal/ports"
)

// Jobs is the regrade queue. Workers claim rows with SKIP LOCKED so that
// concurrent claimers never block on or share a job.
type Jobs struct {
	db *DB
}

func (q *Jobs) Enqueue(ctx context.Context, examID string) (string, error) {
	id := uuid.NewString()
	_, err := q.db.Pool.Exec(ctx, `INSERT INTO regrade_jobs (id, exam_id) VALUES ($1, $2)`, id, examID)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ClaimNext selects the next queued job using SKIP LOCKED and marks it running.
func (q *Jobs) ClaimNext(ctx context.Context) (job ports.RegradeJob, found bool, err error) {
	tx, err := q.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return job, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
		SELECT id, exam_id FROM regrade_jobs
		WHERE status = 'queued'
		ORDER BY queued_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`).Scan(&job.ID, &job.ExamID)
	if errors.Is(err, pgx.ErrNoRows) {
		return job, false, nil
	}
	if err != nil {
		return job, false, err
	}

	if _, err = tx.Exec(ctx, `
		UPDATE regrade_jobs SET status = 'running', started_at = now(), attempts = attempts + 1 WHERE id = $1
	`, job.ID); err != nil {
		return job, false, err
	}
	return job, true, nil
}

// StartJob moves one specific queued job to running, for inline regrades.
func (q *Jobs) StartJob(ctx context.Context, jobID string) error {
	tag, err := q.db.Pool.Exec(ctx, `
		UPDATE regrade_jobs SET status = 'running', started_at = now(), attempts = attempts + 1
		WHERE id = $1 AND status = 'queued'
	`, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return q.wrongState(ctx, jobID, ports.JobQueued)
	}
	return nil
}

func (q *Jobs) MarkCompleted(ctx context.Context, jobID string) error {
	return q.finish(ctx, jobID, ports.JobCompleted, nil)
}

func (q *Jobs) MarkFailed(ctx context.Context, jobID string, reason string) error {
	return q.finish(ctx, jobID, ports.JobFailed, &reason)
}

func (q *Jobs) Status(ctx context.Context, jobID string) (string, error) {
	var status string
	err := q.db.Pool.QueryRow(ctx, `SELECT status FROM regrade_jobs WHERE id = $1`, jobID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}
	return status, err
}

func (q *Jobs) finish(ctx context.Context, jobID, status string, reason *string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tag, err := q.db.Pool.Exec(ctx, `
		UPDATE regrade_jobs SET status = $2, reason = $3, finished_at = now()
		WHERE id = $1 AND status = 'running'
	`, jobID, status, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return q.wrongState(ctx, jobID, ports.JobRunning)
	}
	return nil
}

func (q *Jobs) wrongState(ctx context.Context, jobID, want string) error {
	status, err := q.Status(ctx, jobID)
	if err != nil {
		return err
	}
	return fmt.Errorf("job %s is %s, not %s: %w", jobID, status, want, domain.ErrConflict)
}
