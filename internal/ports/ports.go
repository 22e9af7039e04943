package ports

import (
	"context"

	"gradekey/internal/domain"
)

// Corrections records a candidate's task scores against an exam.
type Corrections interface {
	Execute(ctx context.Context, in domain.RecordCorrectionInput) (domain.CorrectionEntry, error)
}
