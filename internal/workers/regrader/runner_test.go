package regrader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gradekey/internal/adapters/memory"
	"gradekey/internal/domain"
	"gradekey/internal/ports"
)

type recordingProcessor struct {
	mu   sync.Mutex
	seen []string
	fail map[string]error
}

func (p *recordingProcessor) Process(_ context.Context, examID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, examID)
	return p.fail[examID]
}

func (p *recordingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

func TestRun_ProcessesQueuedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q := memory.New().Jobs
	ok, err := q.Enqueue(ctx, "e1")
	require.NoError(t, err)
	bad, err := q.Enqueue(ctx, "e2")
	require.NoError(t, err)

	p := &recordingProcessor{fail: map[string]error{"e2": errors.New("exam vanished")}}
	Run(ctx, q, p, 2, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		s1, _ := q.Status(ctx, ok)
		s2, _ := q.Status(ctx, bad)
		return s1 == ports.JobCompleted && s2 == ports.JobFailed
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "exam vanished", q.Reason(bad))
	assert.Equal(t, 2, p.count())
}

func TestRun_NoWorkers(t *testing.T) {
	q := &ports.MockJobRepository{}
	Run(context.Background(), q, &recordingProcessor{}, 0, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	q.AssertNotCalled(t, "ClaimNext", mock.Anything)
}

func TestProcessInline(t *testing.T) {
	ctx := context.Background()
	q := memory.New().Jobs
	id, err := q.Enqueue(ctx, "e1")
	require.NoError(t, err)

	p := &recordingProcessor{}
	require.NoError(t, ProcessInline(ctx, q, p, ports.RegradeJob{ID: id, ExamID: "e1"}))
	status, _ := q.Status(ctx, id)
	assert.Equal(t, ports.JobCompleted, status)

	_, found, err := q.ClaimNext(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestProcessInline_Failure(t *testing.T) {
	ctx := context.Background()
	q := memory.New().Jobs
	id, _ := q.Enqueue(ctx, "e1")
	boom := errors.New("boom")

	err := ProcessInline(ctx, q, &recordingProcessor{fail: map[string]error{"e1": boom}}, ports.RegradeJob{ID: id, ExamID: "e1"})
	assert.ErrorIs(t, err, boom)
	status, _ := q.Status(ctx, id)
	assert.Equal(t, ports.JobFailed, status)
}

type fakeRegrader struct {
	n   int
	err error
}

func (f fakeRegrader) Regrade(context.Context, string) (int, error) { return f.n, f.err }

func TestServiceProcessor(t *testing.T) {
	assert.NoError(t, ServiceProcessor{Service: fakeRegrader{n: 3}}.Process(context.Background(), "e1"))
	assert.Error(t, ServiceProcessor{Service: fakeRegrader{err: errors.New("x")}}.Process(context.Background(), "e1"))
}

func TestProcessInline_AlreadyClaimed(t *testing.T) {
	ctx := context.Background()
	q := memory.New().Jobs
	id, _ := q.Enqueue(ctx, "e1")
	_, found, err := q.ClaimNext(ctx)
	require.NoError(t, err)
	require.True(t, found)

	p := &recordingProcessor{}
	err = ProcessInline(ctx, q, p, ports.RegradeJob{ID: id, ExamID: "e1"})
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Empty(t, p.seen, "a claimed job is left to its worker")
}
