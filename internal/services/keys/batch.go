package keys

import (
	"math"

	"gradekey/internal/domain"
)

// GradeChange is one correction whose grade differs between two keys.
type GradeChange struct {
	CorrectionID string       `json:"correctionId"`
	CandidateID  string       `json:"candidateId"`
	OldGrade     domain.Grade `json:"oldGrade"`
	NewGrade     domain.Grade `json:"newGrade"`
}

type BatchResult struct {
	AffectedGrades []GradeChange `json:"affectedGrades"`
	ChangeCount    int           `json:"changeCount"`
}

// RecalculateGradesForBatch reports which corrections would change grade if
// newKey replaced oldKey. Nothing is mutated or persisted.
func (e *Engine) RecalculateGradesForBatch(corrections []domain.CorrectionEntry, oldKey, newKey domain.GradingKey) BatchResult {
	res := BatchResult{AffectedGrades: []GradeChange{}}
	for _, c := range corrections {
		before := e.resolver.CalculateGrade(c.TotalPoints, oldKey).Grade
		after := e.resolver.CalculateGrade(c.TotalPoints, newKey).Grade
		if before == after {
			continue
		}
		res.AffectedGrades = append(res.AffectedGrades, GradeChange{
			CorrectionID: c.ID,
			CandidateID:  c.CandidateID,
			OldGrade:     before,
			NewGrade:     after,
		})
	}
	res.ChangeCount = len(res.AffectedGrades)
	return res
}

type ErrorPointsResult struct {
	CalculatedPoints float64      `json:"calculatedPoints"`
	Grade            domain.Grade `json:"grade"`
}

// ConvertErrorPointsToGrade grades a score expressed as errors subtracted from
// maxPoints. The result never drops below zero points. A non-positive maxPoints
// falls back to totalPoints.
func (e *Engine) ConvertErrorPointsToGrade(totalPoints, errorPoints, maxPoints float64, key domain.GradingKey) ErrorPointsResult {
	if maxPoints <= 0 {
		maxPoints = totalPoints
	}
	pts := math.Max(0, maxPoints-errorPoints)
	return ErrorPointsResult{
		CalculatedPoints: pts,
		Grade:            e.resolver.CalculateGrade(pts, key).Grade,
	}
}
