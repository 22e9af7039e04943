package corrections

import (
	"context"
	"fmt"

	"gradekey/internal/domain"
)

// Regrade re-applies the exam's current grading key to every stored
// correction of the exam and persists the entries whose grade or percentage
// changed. Status, comments and correctedAt are left as they are. It returns
// the number of updated entries.
func (s *Service) Regrade(ctx context.Context, examID string) (int, error) {
	exam, found, err := s.exams.FindByID(ctx, examID)
	if err != nil {
		return 0, fmt.Errorf("load exam %s: %w", examID, err)
	}
	if !found {
		return 0, fmt.Errorf("exam %s: %w", examID, domain.ErrNotFound)
	}
	entries, err := s.corrections.ListByExam(ctx, examID)
	if err != nil {
		return 0, fmt.Errorf("list corrections of exam %s: %w", examID, err)
	}

	updated := 0
	for _, e := range entries {
		res := s.resolver.CalculateGrade(e.TotalPoints, exam.GradingKey)
		if res.Grade == e.TotalGrade && res.Percentage == e.PercentageScore {
			continue
		}
		e.TotalGrade = res.Grade
		e.PercentageScore = res.Percentage
		e.LastModified = s.now()
		if _, err := s.corrections.Update(ctx, e.ID, e); err != nil {
			return updated, fmt.Errorf("regrade correction %s: %w", e.ID, err)
		}
		updated++
	}
	return updated, nil
}
