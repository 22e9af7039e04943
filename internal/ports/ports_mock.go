package ports

import (
	"context"

	"github.com/stretchr/testify/mock"

	"gradekey/internal/domain"
)

// MockExamRepository is a mock implementation of ExamRepository for testing.
type MockExamRepository struct {
	mock.Mock
}

var _ ExamRepository = &MockExamRepository{} // Compile-time check

func (m *MockExamRepository) FindByID(ctx context.Context, examID string) (domain.Exam, bool, error) {
	args := m.Called(ctx, examID)
	exam, _ := args.Get(0).(domain.Exam)
	return exam, args.Bool(1), args.Error(2)
}

func (m *MockExamRepository) Create(ctx context.Context, exam domain.Exam) error {
	return m.Called(ctx, exam).Error(0)
}

func (m *MockExamRepository) UpdateGradingKey(ctx context.Context, examID string, key domain.GradingKey, expectedVersion int) error {
	return m.Called(ctx, examID, key, expectedVersion).Error(0)
}

// MockCorrectionRepository is a mock implementation of CorrectionRepository for testing.
type MockCorrectionRepository struct {
	mock.Mock
}

var _ CorrectionRepository = &MockCorrectionRepository{} // Compile-time check

func (m *MockCorrectionRepository) FindByExamAndCandidate(ctx context.Context, examID, candidateID string) (domain.CorrectionEntry, bool, error) {
	args := m.Called(ctx, examID, candidateID)
	e, _ := args.Get(0).(domain.CorrectionEntry)
	return e, args.Bool(1), args.Error(2)
}

func (m *MockCorrectionRepository) FindByID(ctx context.Context, id string) (domain.CorrectionEntry, bool, error) {
	args := m.Called(ctx, id)
	e, _ := args.Get(0).(domain.CorrectionEntry)
	return e, args.Bool(1), args.Error(2)
}

func (m *MockCorrectionRepository) Create(ctx context.Context, e domain.CorrectionEntry) (domain.CorrectionEntry, error) {
	args := m.Called(ctx, e)
	out, _ := args.Get(0).(domain.CorrectionEntry)
	return out, args.Error(1)
}

func (m *MockCorrectionRepository) Update(ctx context.Context, id string, e domain.CorrectionEntry) (domain.CorrectionEntry, error) {
	args := m.Called(ctx, id, e)
	out, _ := args.Get(0).(domain.CorrectionEntry)
	return out, args.Error(1)
}

func (m *MockCorrectionRepository) ListByExam(ctx context.Context, examID string) ([]domain.CorrectionEntry, error) {
	args := m.Called(ctx, examID)
	out, _ := args.Get(0).([]domain.CorrectionEntry)
	return out, args.Error(1)
}

// MockAuditLog is a mock implementation of AuditLog for testing.
type MockAuditLog struct {
	mock.Mock
}

var _ AuditLog = &MockAuditLog{} // Compile-time check

func (m *MockAuditLog) Append(ctx context.Context, keyID string, rec domain.ChangeRecord) error {
	return m.Called(ctx, keyID, rec).Error(0)
}

func (m *MockAuditLog) History(ctx context.Context, keyID string) ([]domain.ChangeRecord, error) {
	args := m.Called(ctx, keyID)
	out, _ := args.Get(0).([]domain.ChangeRecord)
	return out, args.Error(1)
}

// MockJobRepository is a mock implementation of JobRepository for testing.
type MockJobRepository struct {
	mock.Mock
}

var _ JobRepository = &MockJobRepository{} // Compile-time check

func (m *MockJobRepository) Enqueue(ctx context.Context, examID string) (string, error) {
	args := m.Called(ctx, examID)
	return args.String(0), args.Error(1)
}

func (m *MockJobRepository) ClaimNext(ctx context.Context) (RegradeJob, bool, error) {
	args := m.Called(ctx)
	job, _ := args.Get(0).(RegradeJob)
	return job, args.Bool(1), args.Error(2)
}

func (m *MockJobRepository) StartJob(ctx context.Context, jobID string) error {
	return m.Called(ctx, jobID).Error(0)
}

func (m *MockJobRepository) MarkCompleted(ctx context.Context, jobID string) error {
	return m.Called(ctx, jobID).Error(0)
}

func (m *MockJobRepository) MarkFailed(ctx context.Context, jobID string, reason string) error {
	return m.Called(ctx, jobID, reason).Error(0)
}

func (m *MockJobRepository) Status(ctx context.Context, jobID string) (string, error) {
	args := m.Called(ctx, jobID)
	return args.String(0), args.Error(1)
}
