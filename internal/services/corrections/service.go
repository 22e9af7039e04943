// Package corrections applies an exam's grading key to a candidate's task
// scores and drives the correction entry from in-progress to completed.
package corrections

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gradekey/internal/domain"
	"gradekey/internal/grading"
	"gradekey/internal/ports"
)

var _ ports.Corrections = &Service{}

type Service struct {
	exams       ports.ExamRepository
	corrections ports.CorrectionRepository
	resolver    *grading.Resolver
	now         func() time.Time
	newID       func() string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option    { return func(s *Service) { s.now = now } }
func WithIDGenerator(gen func() string) Option { return func(s *Service) { s.newID = gen } }
func WithResolver(r *grading.Resolver) Option  { return func(s *Service) { s.resolver = r } }

func New(exams ports.ExamRepository, corrections ports.CorrectionRepository, opts ...Option) *Service {
	s := &Service{
		exams:       exams,
		corrections: corrections,
		resolver:    grading.NewResolver(),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Execute records one submission. Only a missing exam aborts the call; every
// other input is optional and skipped when empty. Repository errors, including
// domain.ErrConflict from a concurrent writer, are returned wrapped.
func (s *Service) Execute(ctx context.Context, in domain.RecordCorrectionInput) (domain.CorrectionEntry, error) {
	exam, found, err := s.exams.FindByID(ctx, in.ExamID)
	if err != nil {
		return domain.CorrectionEntry{}, fmt.Errorf("load exam %s: %w", in.ExamID, err)
	}
	if !found {
		return domain.CorrectionEntry{}, fmt.Errorf("exam %s: %w", in.ExamID, domain.ErrNotFound)
	}

	entry, exists, err := s.corrections.FindByExamAndCandidate(ctx, in.ExamID, in.CandidateID)
	if err != nil {
		return domain.CorrectionEntry{}, fmt.Errorf("load correction for exam %s candidate %s: %w", in.ExamID, in.CandidateID, err)
	}
	if !exists {
		entry = domain.CorrectionEntry{
			ID:          s.newID(),
			ExamID:      in.ExamID,
			CandidateID: in.CandidateID,
			TaskScores:  []domain.TaskScore{},
			Comments:    []domain.Comment{},
			SupportTips: []domain.SupportTip{},
			Status:      domain.StatusInProgress,
		}
	}

	now := s.now()
	if len(in.TaskScores) > 0 {
		entry.TaskScores = make([]domain.TaskScore, len(in.TaskScores))
		for i, ts := range in.TaskScores {
			if ts.Timestamp.IsZero() {
				ts.Timestamp = now
			}
			entry.TaskScores[i] = ts
		}
	}

	total := 0.0
	for _, ts := range entry.TaskScores {
		total += ts.Points
	}
	res := s.resolver.CalculateGrade(total, exam.GradingKey)
	entry.TotalPoints = total
	entry.TotalGrade = res.Grade
	entry.PercentageScore = res.Percentage

	for _, text := range in.Comments {
		entry.Comments = append(entry.Comments, domain.Comment{
			ID:        s.newID(),
			Text:      text,
			Author:    in.CommentAuthor,
			CreatedAt: now,
		})
	}
	if in.SupportTips != nil {
		entry.SupportTips = make([]domain.SupportTip, len(in.SupportTips))
		for i, tip := range in.SupportTips {
			entry.SupportTips[i] = domain.SupportTip{TipID: tip, AssignedAt: now}
		}
	}

	entry.LastModified = now
	if in.FinalizeCorrection {
		entry.Status = domain.StatusCompleted
		entry.CorrectedAt = &now
		if in.CorrectedBy != "" {
			by := in.CorrectedBy
			entry.CorrectedBy = &by
		}
	}

	return s.persist(ctx, entry)
}

func (s *Service) persist(ctx context.Context, entry domain.CorrectionEntry) (domain.CorrectionEntry, error) {
	_, found, err := s.corrections.FindByID(ctx, entry.ID)
	if err != nil {
		return domain.CorrectionEntry{}, fmt.Errorf("load correction %s: %w", entry.ID, err)
	}
	if found {
		out, err := s.corrections.Update(ctx, entry.ID, entry)
		if err != nil {
			return domain.CorrectionEntry{}, fmt.Errorf("update correction %s: %w", entry.ID, err)
		}
		return out, nil
	}
	out, err := s.corrections.Create(ctx, entry)
	if err != nil {
		return domain.CorrectionEntry{}, fmt.Errorf("create correction %s: %w", entry.ID, err)
	}
	return out, nil
}
