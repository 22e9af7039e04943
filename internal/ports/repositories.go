package ports

import (
	"context"

	"gradekey/internal/domain"
)

// ExamRepository loads exams and persists their current grading key.
//
// UpdateGradingKey replaces the key only while the stored key is still at
// expectedVersion; otherwise it returns domain.ErrConflict. An unknown exam
// yields domain.ErrNotFound.
type ExamRepository interface {
	FindByID(ctx context.Context, examID string) (exam domain.Exam, found bool, err error)
	Create(ctx context.Context, exam domain.Exam) error
	UpdateGradingKey(ctx context.Context, examID string, key domain.GradingKey, expectedVersion int) error
}

// CorrectionRepository stores one CorrectionEntry per (exam, candidate).
//
// Create rejects a second entry for the same pair with domain.ErrConflict.
// Update succeeds only when e.Version matches the stored version; the returned
// entry carries the bumped version. A stale version yields domain.ErrConflict,
// an unknown id domain.ErrNotFound.
type CorrectionRepository interface {
	FindByExamAndCandidate(ctx context.Context, examID, candidateID string) (entry domain.CorrectionEntry, found bool, err error)
	FindByID(ctx context.Context, id string) (entry domain.CorrectionEntry, found bool, err error)
	Create(ctx context.Context, e domain.CorrectionEntry) (domain.CorrectionEntry, error)
	Update(ctx context.Context, id string, e domain.CorrectionEntry) (domain.CorrectionEntry, error)
	ListByExam(ctx context.Context, examID string) ([]domain.CorrectionEntry, error)
}

// AuditLog is an append-only record of grading key changes, keyed by key id.
// Implementations must be safe for concurrent appenders.
type AuditLog interface {
	Append(ctx context.Context, keyID string, rec domain.ChangeRecord) error
	// History returns the records for keyID in append order.
	History(ctx context.Context, keyID string) ([]domain.ChangeRecord, error)
}
