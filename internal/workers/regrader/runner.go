package regrader

import (
	"context"
	"log"
	"time"

	"gradekey/internal/ports"
)

// Processor re-applies an exam's grading key to its stored corrections.
type Processor interface {
	Process(ctx context.Context, examID string) error
}

// Regrader is the part of the correction service the worker drives.
type Regrader interface {
	Regrade(ctx context.Context, examID string) (int, error)
}

// ServiceProcessor adapts a Regrader to Processor and logs the outcome.
type ServiceProcessor struct{ Service Regrader }

func (p ServiceProcessor) Process(ctx context.Context, examID string) error {
	n, err := p.Service.Regrade(ctx, examID)
	if err != nil {
		return err
	}
	log.Printf("regrade exam %s: %d corrections updated", examID, n)
	return nil
}

// Run starts worker goroutines that claim queued regrade jobs and process them
// until ctx is cancelled.
func Run(ctx context.Context, repo ports.JobRepository, processor Processor, concurrency int, pollInterval time.Duration) {
	if concurrency < 1 {
		return
	}
	jobsCh := make(chan ports.RegradeJob, concurrency)

	// dispatcher loop
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		defer close(jobsCh)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for {
					job, found, err := repo.ClaimNext(ctx)
					if err != nil {
						log.Printf("regrade claim error: %v", err)
						break
					}
					if !found {
						break
					}
					select {
					case jobsCh <- job:
					case <-ctx.Done():
						_ = repo.MarkFailed(context.WithoutCancel(ctx), job.ID, "shutdown before processing")
						return
					}
				}
			}
		}
	}()

	for i := 0; i < concurrency; i++ {
		go func(idx int) {
			for job := range jobsCh {
				finish(ctx, repo, processor, job, idx)
			}
		}(i)
	}
}

func finish(ctx context.Context, repo ports.JobRepository, processor Processor, job ports.RegradeJob, idx int) {
	if err := processor.Process(ctx, job.ExamID); err != nil {
		if mErr := repo.MarkFailed(ctx, job.ID, err.Error()); mErr != nil {
			log.Printf("worker %d: mark failed %s: %v", idx, job.ID, mErr)
		}
		log.Printf("worker %d: regrade job %s failed: %v", idx, job.ID, err)
		return
	}
	if err := repo.MarkCompleted(ctx, job.ID); err != nil {
		log.Printf("worker %d: complete err: %v", idx, err)
	}
}

// ProcessInline runs a specific queued job synchronously with the same
// processor the background workers use.
func ProcessInline(ctx context.Context, repo ports.JobRepository, processor Processor, job ports.RegradeJob) error {
	if err := repo.StartJob(ctx, job.ID); err != nil {
		return err
	}
	if err := processor.Process(ctx, job.ExamID); err != nil {
		_ = repo.MarkFailed(ctx, job.ID, err.Error())
		return err
	}
	return repo.MarkCompleted(ctx, job.ID)
}
