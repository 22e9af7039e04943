package ports

import "context"

type RegradeJob struct {
	ID     string
	ExamID string
}

// Job states.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// JobRepository supports queueing, claiming and finishing regrade jobs.
type JobRepository interface {
	Enqueue(ctx context.Context, examID string) (jobID string, err error)
	ClaimNext(ctx context.Context) (job RegradeJob, found bool, err error)
	// StartJob moves a specific queued job to running, for inline processing.
	StartJob(ctx context.Context, jobID string) error
	MarkCompleted(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID string, reason string) error
	Status(ctx context.Context, jobID string) (status string, err error)
}
