package corrections

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gradekey/internal/adapters/memory"
	"gradekey/internal/domain"
	"gradekey/internal/ports"
)

var t0 = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

func ihkKey() domain.GradingKey {
	mins := []float64{92, 81, 70, 60, 50, 0}
	bs := make([]domain.GradeBoundary, len(mins))
	for i, m := range mins {
		g := domain.Grade(fmt.Sprint(i + 1))
		bs[i] = domain.GradeBoundary{Grade: g, DisplayValue: string(g), MinPercentage: domain.Float(m)}
	}
	return domain.GradingKey{
		ID: "k1", Name: "IHK", Type: domain.KeyTypePercentage, TotalPoints: 100,
		GradeBoundaries: bs, RoundingRule: domain.DefaultRoundingRule, Version: 1,
	}
}

// clock advances one minute per call.
func clock() func() time.Time {
	n := 0
	return func() time.Time {
		n++
		return t0.Add(time.Duration(n) * time.Minute)
	}
}

func ids() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newMemoryService(t *testing.T, key domain.GradingKey) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.Exams.Create(context.Background(), domain.Exam{ID: "exam-1", Title: "Abschluss", GradingKey: key}))
	return New(store.Exams, store.Corrections, WithClock(clock()), WithIDGenerator(ids())), store
}

func TestExecute_DraftThenFinalize(t *testing.T) {
	ctx := context.Background()
	svc, store := newMemoryService(t, ihkKey())

	first, err := svc.Execute(ctx, domain.RecordCorrectionInput{
		ExamID: "exam-1", CandidateID: "cand-1",
		TaskScores: []domain.TaskScore{{TaskID: "t1", Points: 30, MaxPoints: 50}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, first.Status)
	assert.Equal(t, 30.0, first.TotalPoints)
	assert.Equal(t, domain.Grade("6"), first.TotalGrade)
	assert.Equal(t, 30.0, first.PercentageScore)
	assert.Nil(t, first.CorrectedAt)
	assert.Equal(t, 1, first.Version)

	second, err := svc.Execute(ctx, domain.RecordCorrectionInput{
		ExamID: "exam-1", CandidateID: "cand-1",
		TaskScores: []domain.TaskScore{
			{TaskID: "t1", Points: 45, MaxPoints: 50},
			{TaskID: "t2", Points: 40, MaxPoints: 50},
		},
		FinalizeCorrection: true,
		CorrectedBy:        "examiner-7",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 85.0, second.TotalPoints)
	assert.Equal(t, domain.Grade("2"), second.TotalGrade)
	assert.Equal(t, domain.StatusCompleted, second.Status)
	require.NotNil(t, second.CorrectedAt)
	require.NotNil(t, second.CorrectedBy)
	assert.Equal(t, "examiner-7", *second.CorrectedBy)
	assert.Equal(t, 2, second.Version)

	assert.Equal(t, 1, store.Corrections.Len())
	rows, err := store.Corrections.ListByExam(ctx, "exam-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0].TaskScores, 2)
}

func TestExecute_ExamNotFoundWritesNothing(t *testing.T) {
	exams := &ports.MockExamRepository{}
	exams.On("FindByID", mock.Anything, "missing").Return(domain.Exam{}, false, nil)
	corrections := &ports.MockCorrectionRepository{}

	svc := New(exams, corrections)
	_, err := svc.Execute(context.Background(), domain.RecordCorrectionInput{
		ExamID: "missing", CandidateID: "c",
		TaskScores:         []domain.TaskScore{{Points: 1}},
		FinalizeCorrection: true,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "missing")
	corrections.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	corrections.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	corrections.AssertNotCalled(t, "FindByExamAndCandidate", mock.Anything, mock.Anything, mock.Anything)
	exams.AssertExpectations(t)
}

func TestExecute_ExamRepositoryErrorPropagates(t *testing.T) {
	boom := errors.New("connection reset")
	exams := &ports.MockExamRepository{}
	exams.On("FindByID", mock.Anything, "e").Return(domain.Exam{}, false, boom)

	_, err := New(exams, &ports.MockCorrectionRepository{}).Execute(context.Background(), domain.RecordCorrectionInput{ExamID: "e"})
	assert.ErrorIs(t, err, boom)
}

func TestExecute_ConflictOnStaleUpdate(t *testing.T) {
	existing := domain.CorrectionEntry{ID: "c1", ExamID: "e", CandidateID: "s", Status: domain.StatusInProgress, Version: 3}
	exams := &ports.MockExamRepository{}
	exams.On("FindByID", mock.Anything, "e").Return(domain.Exam{ID: "e", GradingKey: ihkKey()}, true, nil)
	corrections := &ports.MockCorrectionRepository{}
	corrections.On("FindByExamAndCandidate", mock.Anything, "e", "s").Return(existing, true, nil)
	corrections.On("FindByID", mock.Anything, "c1").Return(existing, true, nil)
	corrections.On("Update", mock.Anything, "c1", mock.MatchedBy(func(e domain.CorrectionEntry) bool {
		return e.Version == 3 && e.TotalPoints == 12
	})).Return(domain.CorrectionEntry{}, fmt.Errorf("correction c1: %w", domain.ErrConflict))

	_, err := New(exams, corrections).Execute(context.Background(), domain.RecordCorrectionInput{
		ExamID: "e", CandidateID: "s", TaskScores: []domain.TaskScore{{TaskID: "t", Points: 12}},
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
	corrections.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	corrections.AssertExpectations(t)
}

func TestExecute_CommentsAppendAndTipsReplace(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryService(t, ihkKey())
	in := domain.RecordCorrectionInput{ExamID: "exam-1", CandidateID: "cand-1"}

	in.Comments = []string{"good structure"}
	in.CommentAuthor = "alice"
	in.SupportTips = []string{"tip-a", "tip-b"}
	e, err := svc.Execute(ctx, in)
	require.NoError(t, err)
	require.Len(t, e.Comments, 1)
	assert.Equal(t, "alice", e.Comments[0].Author)
	assert.NotEmpty(t, e.Comments[0].ID)
	assert.False(t, e.Comments[0].CreatedAt.IsZero())
	require.Len(t, e.SupportTips, 2)

	in.Comments = []string{"check task 3", "units missing"}
	in.SupportTips = []string{"tip-c"}
	e, err = svc.Execute(ctx, in)
	require.NoError(t, err)
	require.Len(t, e.Comments, 3, "comments are appended")
	assert.Equal(t, "good structure", e.Comments[0].Text)
	assert.NotEqual(t, e.Comments[1].ID, e.Comments[2].ID)
	require.Len(t, e.SupportTips, 1, "tips are replaced")
	assert.Equal(t, "tip-c", e.SupportTips[0].TipID)
	assert.False(t, e.SupportTips[0].AssignedAt.IsZero())

	// Omitted tips keep the list; an explicit empty list clears it.
	in.Comments, in.SupportTips = nil, nil
	e, err = svc.Execute(ctx, in)
	require.NoError(t, err)
	assert.Len(t, e.SupportTips, 1)
	assert.Len(t, e.Comments, 3)

	in.SupportTips = []string{}
	e, err = svc.Execute(ctx, in)
	require.NoError(t, err)
	assert.Empty(t, e.SupportTips)
}

func TestExecute_EmptyScoresKeepPreviousAndStatusIsMonotonic(t *testing.T) {
	ctx := context.Background()
	svc, _ := newMemoryService(t, ihkKey())

	done, err := svc.Execute(ctx, domain.RecordCorrectionInput{
		ExamID: "exam-1", CandidateID: "cand-1",
		TaskScores:         []domain.TaskScore{{TaskID: "t1", Points: 93}},
		FinalizeCorrection: true,
	})
	require.NoError(t, err)
	require.NotNil(t, done.CorrectedAt)

	again, err := svc.Execute(ctx, domain.RecordCorrectionInput{
		ExamID: "exam-1", CandidateID: "cand-1",
		Comments: []string{"late remark"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, again.Status, "never reverts to in-progress")
	assert.Equal(t, *done.CorrectedAt, *again.CorrectedAt)
	assert.Equal(t, 93.0, again.TotalPoints)
	assert.Equal(t, domain.Grade("1"), again.TotalGrade)
	assert.True(t, again.LastModified.After(done.LastModified))
}

func TestExecute_TaskTimestampsDefaultToNow(t *testing.T) {
	svc, _ := newMemoryService(t, ihkKey())
	stamp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e, err := svc.Execute(context.Background(), domain.RecordCorrectionInput{
		ExamID: "exam-1", CandidateID: "cand-1",
		TaskScores: []domain.TaskScore{{TaskID: "a", Points: 1}, {TaskID: "b", Points: 2, Timestamp: stamp}},
	})
	require.NoError(t, err)
	assert.Equal(t, e.LastModified, e.TaskScores[0].Timestamp)
	assert.Equal(t, stamp, e.TaskScores[1].Timestamp)
}

func TestExecute_KeyWithoutBoundariesYieldsNoGrade(t *testing.T) {
	key := ihkKey()
	key.GradeBoundaries = nil
	svc, _ := newMemoryService(t, key)
	e, err := svc.Execute(context.Background(), domain.RecordCorrectionInput{
		ExamID: "exam-1", CandidateID: "cand-1",
		TaskScores: []domain.TaskScore{{TaskID: "t1", Points: 42}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.NoGrade, e.TotalGrade)
	assert.Equal(t, 42.0, e.PercentageScore)
}

func TestRegrade_AppliesCurrentKey(t *testing.T) {
	ctx := context.Background()
	svc, store := newMemoryService(t, ihkKey())
	for cand, pts := range map[string]float64{"a": 91, "b": 85, "c": 47} {
		_, err := svc.Execute(ctx, domain.RecordCorrectionInput{
			ExamID: "exam-1", CandidateID: cand,
			TaskScores:         []domain.TaskScore{{TaskID: "t", Points: pts}},
			FinalizeCorrection: cand == "a",
		})
		require.NoError(t, err)
	}

	key := ihkKey()
	key.GradeBoundaries[0].MinPercentage = domain.Float(90)
	key.GradeBoundaries[4].MinPercentage = domain.Float(45)
	key.Version = 2
	require.NoError(t, store.Exams.UpdateGradingKey(ctx, "exam-1", key, 1))

	n, err := svc.Regrade(ctx, "exam-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	a, _, _ := store.Corrections.FindByExamAndCandidate(ctx, "exam-1", "a")
	assert.Equal(t, domain.Grade("1"), a.TotalGrade)
	assert.Equal(t, domain.StatusCompleted, a.Status)
	c, _, _ := store.Corrections.FindByExamAndCandidate(ctx, "exam-1", "c")
	assert.Equal(t, domain.Grade("5"), c.TotalGrade)
	assert.Equal(t, domain.StatusInProgress, c.Status)

	n, err = svc.Regrade(ctx, "exam-1")
	require.NoError(t, err)
	assert.Zero(t, n, "a second pass finds nothing to change")
}

func TestRegrade_UnknownExam(t *testing.T) {
	svc, _ := newMemoryService(t, ihkKey())
	_, err := svc.Regrade(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
