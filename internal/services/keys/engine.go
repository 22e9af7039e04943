// Package keys manages the grading key lifecycle: construction, conversion,
// audited modification, diffing, cloning and impact analysis.
package keys

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"gradekey/internal/audit"
	"gradekey/internal/domain"
	"gradekey/internal/grading"
	"gradekey/internal/ports"
)

type Engine struct {
	audit    ports.AuditLog
	resolver *grading.Resolver
	now      func() time.Time
	newID    func() string

	mu      sync.Mutex
	entropy *rand.Rand
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithIDGenerator overrides the uuid source used for new keys.
func WithIDGenerator(gen func() string) Option { return func(e *Engine) { e.newID = gen } }

func WithResolver(r *grading.Resolver) Option { return func(e *Engine) { e.resolver = r } }

// New builds an engine recording changes to log. A nil log falls back to an
// in-memory one.
func New(log ports.AuditLog, opts ...Option) *Engine {
	if log == nil {
		log = audit.NewMemoryLog()
	}
	e := &Engine{
		audit:    log,
		resolver: grading.NewResolver(),
		now:      time.Now,
		newID:    uuid.NewString,
		entropy:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Resolver returns the resolver used for every grade computation of the engine.
func (e *Engine) Resolver() *grading.Resolver { return e.resolver }

// CreateCustomGradingKey builds a percentage key with boundaries sorted by
// descending minimum percentage. Ties keep their input order. A nil rule
// selects domain.DefaultRoundingRule.
func (e *Engine) CreateCustomGradingKey(name string, totalPoints float64, boundaries []domain.GradeBoundary, rule *domain.RoundingRule) domain.GradingKey {
	bs := domain.CloneBoundaries(boundaries)
	if bs == nil {
		bs = []domain.GradeBoundary{}
	}
	slices.SortStableFunc(bs, func(a, b domain.GradeBoundary) int {
		return cmp.Compare(sortThreshold(b), sortThreshold(a))
	})
	rr := domain.DefaultRoundingRule
	if rule != nil {
		rr = *rule
	}
	return domain.GradingKey{
		ID:              e.newID(),
		Name:            name,
		Type:            domain.KeyTypePercentage,
		TotalPoints:     totalPoints,
		GradeBoundaries: bs,
		RoundingRule:    rr,
		Customizable:    true,
		Version:         1,
		CreatedAt:       e.now(),
	}
}

// boundaries without a minimum percentage sort last
func sortThreshold(b domain.GradeBoundary) float64 {
	if b.MinPercentage == nil {
		return -1
	}
	return *b.MinPercentage
}

// ConvertToPointsBased derives point thresholds from the percentage ones,
// rounding up so a threshold is never reachable with fewer points than the
// percentage demands. Percentage fields are kept alongside.
func (e *Engine) ConvertToPointsBased(key domain.GradingKey, totalPoints float64) domain.GradingKey {
	out := key.Clone()
	out.Type = domain.KeyTypePoints
	out.TotalPoints = totalPoints
	for i := range out.GradeBoundaries {
		b := &out.GradeBoundaries[i]
		if b.MinPercentage != nil {
			b.MinPoints = domain.Float(grading.PointsForPercentage(*b.MinPercentage, totalPoints))
		}
		if b.MaxPercentage != nil {
			b.MaxPoints = domain.Float(grading.PointsForPercentage(*b.MaxPercentage, totalPoints))
		}
	}
	return out
}

// ModifyGradingKeyAfterCorrection replaces the boundaries of oldKey and records
// exactly one ChangeRecord under oldKey.ID. Stored corrections are not touched;
// use RecalculateGradesForBatch or the regrade worker for that. If the audit
// append fails the modification is discarded.
func (e *Engine) ModifyGradingKeyAfterCorrection(ctx context.Context, oldKey domain.GradingKey, newBoundaries []domain.GradeBoundary, reason, changedBy *string) (domain.GradingKey, error) {
	newKey, rec := e.modification(oldKey, newBoundaries, reason, changedBy)
	if err := e.audit.Append(ctx, oldKey.ID, rec); err != nil {
		return domain.GradingKey{}, fmt.Errorf("record change of grading key %s: %w", oldKey.ID, err)
	}
	return newKey, nil
}

// ModifyExamGradingKey is ModifyGradingKeyAfterCorrection for the key of a
// stored exam. The exam's key is swapped from oldKey.Version to the new
// version before the change is recorded, so of two edits starting from the
// same version only one succeeds; the other gets domain.ErrConflict and leaves
// no record. If the record cannot be appended the exam is switched back.
func (e *Engine) ModifyExamGradingKey(ctx context.Context, exams ports.ExamRepository, examID string, oldKey domain.GradingKey, newBoundaries []domain.GradeBoundary, reason, changedBy *string) (domain.GradingKey, error) {
	newKey, rec := e.modification(oldKey, newBoundaries, reason, changedBy)
	if err := exams.UpdateGradingKey(ctx, examID, newKey, oldKey.Version); err != nil {
		return domain.GradingKey{}, fmt.Errorf("store grading key of exam %s: %w", examID, err)
	}
	if err := e.audit.Append(ctx, oldKey.ID, rec); err != nil {
		if rbErr := exams.UpdateGradingKey(context.WithoutCancel(ctx), examID, oldKey, newKey.Version); rbErr != nil {
			err = errors.Join(err, fmt.Errorf("restore grading key of exam %s: %w", examID, rbErr))
		}
		return domain.GradingKey{}, fmt.Errorf("record change of grading key %s: %w", oldKey.ID, err)
	}
	return newKey, nil
}

func (e *Engine) modification(oldKey domain.GradingKey, newBoundaries []domain.GradeBoundary, reason, changedBy *string) (domain.GradingKey, domain.ChangeRecord) {
	newKey := oldKey.Clone()
	newKey.GradeBoundaries = domain.CloneBoundaries(newBoundaries)
	newKey.ModifiedAfterCorrection = true
	newKey.Version = oldKey.Version + 1

	return newKey, domain.ChangeRecord{
		ID:          e.recordID(),
		Timestamp:   e.now(),
		PreviousKey: oldKey.Clone(),
		NewKey:      newKey.Clone(),
		Reason:      reason,
		ChangedBy:   changedBy,
	}
}

// KeyPatch lists the fields CloneWithModifications may override. Nil fields
// keep the source value.
type KeyPatch struct {
	Name               *string                `json:"name,omitempty"`
	Type               *domain.KeyType        `json:"type,omitempty"`
	TotalPoints        *float64               `json:"totalPoints,omitempty"`
	GradeBoundaries    []domain.GradeBoundary `json:"gradeBoundaries,omitempty"`
	RoundingRule       *domain.RoundingRule   `json:"roundingRule,omitempty"`
	Customizable       *bool                  `json:"customizable,omitempty"`
	ErrorPointsToGrade *bool                  `json:"errorPointsToGrade,omitempty"`
}

// CloneWithModifications copies src, applies p and issues the result as a new
// key: fresh id, version 1, not modified after correction.
func (e *Engine) CloneWithModifications(src domain.GradingKey, p KeyPatch) domain.GradingKey {
	out := src.Clone()
	if p.Name != nil {
		out.Name = *p.Name
	}
	if p.Type != nil {
		out.Type = *p.Type
	}
	if p.TotalPoints != nil {
		out.TotalPoints = *p.TotalPoints
	}
	if p.GradeBoundaries != nil {
		out.GradeBoundaries = domain.CloneBoundaries(p.GradeBoundaries)
	}
	if p.RoundingRule != nil {
		out.RoundingRule = *p.RoundingRule
	}
	if p.Customizable != nil {
		out.Customizable = *p.Customizable
	}
	if p.ErrorPointsToGrade != nil {
		out.ErrorPointsToGrade = *p.ErrorPointsToGrade
	}
	out.ID = e.newID()
	out.ModifiedAfterCorrection = false
	out.Version = 1
	out.CreatedAt = e.now()
	return out
}

func (e *Engine) recordID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(e.now()), e.entropy).String()
}
