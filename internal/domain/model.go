package domain

import "time"

// Core domain models used by the grading engine. Storage and transport adapters
// translate to and from these types; nothing here knows about JSON columns or rows.

// KeyType selects how a grading key's boundaries are evaluated.
type KeyType string

const (
	KeyTypePercentage KeyType = "percentage"
	KeyTypePoints     KeyType = "points"
)

// RoundingType names a rounding policy.
type RoundingType string

const (
	RoundUp      RoundingType = "up"
	RoundDown    RoundingType = "down"
	RoundNearest RoundingType = "nearest"
	RoundNone    RoundingType = "none"
)

type RoundingRule struct {
	Type          RoundingType `json:"type"`
	DecimalPlaces int          `json:"decimalPlaces"`
}

// DefaultRoundingRule matches the one-decimal precision used for percentages.
var DefaultRoundingRule = RoundingRule{Type: RoundNearest, DecimalPlaces: 1}

// Grade is the resolved grade of a boundary, e.g. "1" or "2-".
type Grade string

// NoGrade is returned when a key has no boundaries configured.
const NoGrade Grade = "N/A"

// GradeBoundary is one grade's matching range. Either the percentage pair or the
// points pair is populated, depending on the owning key's type; points keys
// converted from percentage keys carry both.
type GradeBoundary struct {
	Grade         Grade    `json:"grade"`
	DisplayValue  string   `json:"displayValue"`
	MinPercentage *float64 `json:"minPercentage,omitempty"`
	MaxPercentage *float64 `json:"maxPercentage,omitempty"`
	MinPoints     *float64 `json:"minPoints,omitempty"`
	MaxPoints     *float64 `json:"maxPoints,omitempty"`
}

// Equal reports structural equality, comparing optional fields by value.
func (b GradeBoundary) Equal(o GradeBoundary) bool {
	return b.Grade == o.Grade &&
		b.DisplayValue == o.DisplayValue &&
		floatPtrEqual(b.MinPercentage, o.MinPercentage) &&
		floatPtrEqual(b.MaxPercentage, o.MaxPercentage) &&
		floatPtrEqual(b.MinPoints, o.MinPoints) &&
		floatPtrEqual(b.MaxPoints, o.MaxPoints)
}

// MinPercentOf returns the boundary's lower threshold as a percentage of total,
// deriving it from MinPoints when no percentage is stored.
func (b GradeBoundary) MinPercentOf(total float64) (float64, bool) {
	if b.MinPercentage != nil {
		return *b.MinPercentage, true
	}
	if b.MinPoints != nil && total > 0 {
		return *b.MinPoints / total * 100, true
	}
	return 0, false
}

// GradingKey maps score ranges to grades. Published keys are treated as
// immutable: every edit produces a new value with a bumped Version.
type GradingKey struct {
	ID                      string          `json:"id"`
	Name                    string          `json:"name"`
	Type                    KeyType         `json:"type"`
	TotalPoints             float64         `json:"totalPoints"`
	GradeBoundaries         []GradeBoundary `json:"gradeBoundaries"`
	RoundingRule            RoundingRule    `json:"roundingRule"`
	Customizable            bool            `json:"customizable"`
	ModifiedAfterCorrection bool            `json:"modifiedAfterCorrection"`
	ErrorPointsToGrade      bool            `json:"errorPointsToGrade"`
	Version                 int             `json:"version"`
	CreatedAt               time.Time       `json:"createdAt"`
}

// Clone returns a copy that shares no slices or pointers with k.
func (k GradingKey) Clone() GradingKey {
	k.GradeBoundaries = CloneBoundaries(k.GradeBoundaries)
	return k
}

// CloneBoundaries deep-copies a boundary list, including optional thresholds.
func CloneBoundaries(in []GradeBoundary) []GradeBoundary {
	if in == nil {
		return nil
	}
	out := make([]GradeBoundary, len(in))
	for i, b := range in {
		b.MinPercentage = copyFloat(b.MinPercentage)
		b.MaxPercentage = copyFloat(b.MaxPercentage)
		b.MinPoints = copyFloat(b.MinPoints)
		b.MaxPoints = copyFloat(b.MaxPoints)
		out[i] = b
	}
	return out
}

type Exam struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	GradingKey GradingKey `json:"gradingKey"`
}

type CorrectionStatus string

const (
	StatusInProgress CorrectionStatus = "in-progress"
	StatusCompleted  CorrectionStatus = "completed"
)

type TaskScore struct {
	TaskID    string    `json:"taskId"`
	Points    float64   `json:"points"`
	MaxPoints float64   `json:"maxPoints"`
	Timestamp time.Time `json:"timestamp"`
}

type Comment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type SupportTip struct {
	TipID      string    `json:"tipId"`
	AssignedAt time.Time `json:"assignedAt"`
}

// CorrectionEntry is a candidate's graded result for one exam. Version is the
// optimistic-lock token checked by repositories on update.
type CorrectionEntry struct {
	ID              string           `json:"id"`
	ExamID          string           `json:"examId"`
	CandidateID     string           `json:"candidateId"`
	TaskScores      []TaskScore      `json:"taskScores"`
	TotalPoints     float64          `json:"totalPoints"`
	TotalGrade      Grade            `json:"totalGrade"`
	PercentageScore float64          `json:"percentageScore"`
	Comments        []Comment        `json:"comments"`
	SupportTips     []SupportTip     `json:"supportTips"`
	Status          CorrectionStatus `json:"status"`
	CorrectedBy     *string          `json:"correctedBy,omitempty"`
	CorrectedAt     *time.Time       `json:"correctedAt,omitempty"`
	LastModified    time.Time        `json:"lastModified"`
	Version         int              `json:"version"`
}

// RecordCorrectionInput is one score submission for a candidate. Empty
// optional fields leave the stored entry untouched.
type RecordCorrectionInput struct {
	ExamID             string      `json:"examId"`
	CandidateID        string      `json:"candidateId"`
	TaskScores         []TaskScore `json:"taskScores,omitempty"`
	Comments           []string    `json:"comments,omitempty"`
	CommentAuthor      string      `json:"commentAuthor,omitempty"`
	SupportTips        []string    `json:"supportTips,omitempty"`
	FinalizeCorrection bool        `json:"finalizeCorrection,omitempty"`
	CorrectedBy        string      `json:"correctedBy,omitempty"`
}

// ChangeRecord is one audited edit of a grading key with before/after snapshots.
type ChangeRecord struct {
	ID          string     `json:"id"`
	Timestamp   time.Time  `json:"timestamp"`
	PreviousKey GradingKey `json:"previousKey"`
	NewKey      GradingKey `json:"newKey"`
	Reason      *string    `json:"reason,omitempty"`
	ChangedBy   *string    `json:"changedBy,omitempty"`
}

// Float returns a pointer to v, for populating optional thresholds.
func Float(v float64) *float64 { return &v }

func copyFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
