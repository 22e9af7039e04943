// Package memory is a process-local backend for exams, corrections and
// regrade jobs. It is used by tests and by `serve --db-backend memory`.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"gradekey/internal/domain"
	"gradekey/internal/ports"
)

var (
	_ ports.ExamRepository       = &Exams{}
	_ ports.CorrectionRepository = &Corrections{}
	_ ports.JobRepository        = &Jobs{}
)

// Store bundles the repositories of one in-memory backend.
type Store struct {
	Exams       *Exams
	Corrections *Corrections
	Jobs        *Jobs
}

func New() *Store {
	return &Store{
		Exams:       &Exams{m: map[string]domain.Exam{}},
		Corrections: &Corrections{m: map[string]domain.CorrectionEntry{}},
		Jobs:        &Jobs{},
	}
}

type Exams struct {
	mu sync.RWMutex
	m  map[string]domain.Exam
}

func (r *Exams) FindByID(_ context.Context, examID string) (domain.Exam, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.m[examID]
	if !ok {
		return domain.Exam{}, false, nil
	}
	e.GradingKey = e.GradingKey.Clone()
	return e, true, nil
}

func (r *Exams) Create(_ context.Context, exam domain.Exam) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[exam.ID]; ok {
		return fmt.Errorf("exam %s: %w", exam.ID, domain.ErrConflict)
	}
	exam.GradingKey = exam.GradingKey.Clone()
	r.m[exam.ID] = exam
	return nil
}

func (r *Exams) UpdateGradingKey(_ context.Context, examID string, key domain.GradingKey, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.m[examID]
	if !ok {
		return fmt.Errorf("exam %s: %w", examID, domain.ErrNotFound)
	}
	if e.GradingKey.Version != expectedVersion {
		return fmt.Errorf("grading key of exam %s: expected version %d, stored %d: %w",
			examID, expectedVersion, e.GradingKey.Version, domain.ErrConflict)
	}
	e.GradingKey = key.Clone()
	r.m[examID] = e
	return nil
}

// Corrections enforces one entry per (exam, candidate) and optimistic
// versioning on update.
type Corrections struct {
	mu    sync.RWMutex
	m     map[string]domain.CorrectionEntry
	order []string // ids in insertion order
}

func (r *Corrections) FindByExamAndCandidate(_ context.Context, examID, candidateID string) (domain.CorrectionEntry, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.findPair(examID, candidateID); ok {
		return cloneEntry(c), true, nil
	}
	return domain.CorrectionEntry{}, false, nil
}

func (r *Corrections) FindByID(_ context.Context, id string) (domain.CorrectionEntry, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.m[id]
	if !ok {
		return domain.CorrectionEntry{}, false, nil
	}
	return cloneEntry(c), true, nil
}

func (r *Corrections) Create(_ context.Context, e domain.CorrectionEntry) (domain.CorrectionEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[e.ID]; ok {
		return domain.CorrectionEntry{}, fmt.Errorf("correction %s: %w", e.ID, domain.ErrConflict)
	}
	if _, ok := r.findPair(e.ExamID, e.CandidateID); ok {
		return domain.CorrectionEntry{}, fmt.Errorf("correction for exam %s candidate %s: %w", e.ExamID, e.CandidateID, domain.ErrConflict)
	}
	e.Version = 1
	r.m[e.ID] = cloneEntry(e)
	r.order = append(r.order, e.ID)
	return cloneEntry(e), nil
}

func (r *Corrections) Update(_ context.Context, id string, e domain.CorrectionEntry) (domain.CorrectionEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.m[id]
	if !ok {
		return domain.CorrectionEntry{}, fmt.Errorf("correction %s: %w", id, domain.ErrNotFound)
	}
	if cur.Version != e.Version {
		return domain.CorrectionEntry{}, fmt.Errorf("correction %s: version %d, stored %d: %w", id, e.Version, cur.Version, domain.ErrConflict)
	}
	e.ID = id
	e.ExamID, e.CandidateID = cur.ExamID, cur.CandidateID
	e.Version = cur.Version + 1
	r.m[id] = cloneEntry(e)
	return cloneEntry(e), nil
}

func (r *Corrections) ListByExam(_ context.Context, examID string) ([]domain.CorrectionEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.CorrectionEntry{}
	for _, id := range r.order {
		if c := r.m[id]; c.ExamID == examID {
			out = append(out, cloneEntry(c))
		}
	}
	return out, nil
}

// Len reports the number of stored entries.
func (r *Corrections) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}

func (r *Corrections) findPair(examID, candidateID string) (domain.CorrectionEntry, bool) {
	for _, id := range r.order {
		if c := r.m[id]; c.ExamID == examID && c.CandidateID == candidateID {
			return c, true
		}
	}
	return domain.CorrectionEntry{}, false
}

func cloneEntry(e domain.CorrectionEntry) domain.CorrectionEntry {
	e.TaskScores = slices.Clone(e.TaskScores)
	e.Comments = slices.Clone(e.Comments)
	e.SupportTips = slices.Clone(e.SupportTips)
	if e.CorrectedBy != nil {
		v := *e.CorrectedBy
		e.CorrectedBy = &v
	}
	if e.CorrectedAt != nil {
		v := *e.CorrectedAt
		e.CorrectedAt = &v
	}
	return e
}
