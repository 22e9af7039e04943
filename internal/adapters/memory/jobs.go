package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"gradekey/internal/domain"
	"gradekey/internal/ports"
)

type job struct {
	ports.RegradeJob
	status string
	reason string
}

// Jobs is a FIFO regrade queue.
type Jobs struct {
	mu   sync.Mutex
	jobs []*job
}

func (q *Jobs) Enqueue(_ context.Context, examID string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j := &job{RegradeJob: ports.RegradeJob{ID: uuid.NewString(), ExamID: examID}, status: ports.JobQueued}
	q.jobs = append(q.jobs, j)
	return j.ID, nil
}

func (q *Jobs) ClaimNext(_ context.Context) (ports.RegradeJob, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, j := range q.jobs {
		if j.status == ports.JobQueued {
			j.status = ports.JobRunning
			return j.RegradeJob, true, nil
		}
	}
	return ports.RegradeJob{}, false, nil
}

func (q *Jobs) StartJob(_ context.Context, jobID string) error {
	return q.transition(jobID, ports.JobQueued, ports.JobRunning, "")
}

func (q *Jobs) MarkCompleted(_ context.Context, jobID string) error {
	return q.transition(jobID, ports.JobRunning, ports.JobCompleted, "")
}

func (q *Jobs) MarkFailed(_ context.Context, jobID string, reason string) error {
	return q.transition(jobID, ports.JobRunning, ports.JobFailed, reason)
}

func (q *Jobs) Status(_ context.Context, jobID string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j := q.find(jobID)
	if j == nil {
		return "", fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}
	return j.status, nil
}

// Reason returns the failure message recorded for a job.
func (q *Jobs) Reason(jobID string) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j := q.find(jobID); j != nil {
		return j.reason
	}
	return ""
}

func (q *Jobs) transition(jobID, from, to, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	j := q.find(jobID)
	if j == nil {
		return fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
	}
	if j.status != from {
		return fmt.Errorf("job %s is %s, not %s: %w", jobID, j.status, from, domain.ErrConflict)
	}
	j.status, j.reason = to, reason
	return nil
}

func (q *Jobs) find(jobID string) *job {
	for _, j := range q.jobs {
		if j.ID == jobID {
			return j
		}
	}
	return nil
}
