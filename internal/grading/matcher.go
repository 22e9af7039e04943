package grading

import "gradekey/internal/domain"

// score is the value a boundary is tested against.
type score struct {
	points     float64
	percentage float64
	total      float64
}

// BoundaryMatcher decides whether a boundary's range contains a score. One
// implementation exists per key type; the resolver picks it by the key's tag.
type BoundaryMatcher interface {
	// Contains reports whether s falls inside b. top is true for the
	// highest-ranked boundary, whose upper bound is inclusive.
	Contains(b domain.GradeBoundary, s score, top bool) bool
	// AboveRange reports whether s lies above b's upper bound.
	AboveRange(b domain.GradeBoundary, s score) bool
}

// percentageMatcher evaluates [minPercentage, maxPercentage), max defaulting to 100.
type percentageMatcher struct{}

func (percentageMatcher) bounds(b domain.GradeBoundary) (lo, hi float64, ok bool) {
	if b.MinPercentage == nil {
		return 0, 0, false
	}
	hi = 100
	if b.MaxPercentage != nil {
		hi = *b.MaxPercentage
	}
	return *b.MinPercentage, hi, true
}

func (m percentageMatcher) Contains(b domain.GradeBoundary, s score, top bool) bool {
	lo, hi, ok := m.bounds(b)
	if !ok {
		return false
	}
	return inRange(s.percentage, lo, hi, top)
}

func (m percentageMatcher) AboveRange(b domain.GradeBoundary, s score) bool {
	_, hi, ok := m.bounds(b)
	return ok && s.percentage > hi
}

// pointsMatcher evaluates [minPoints, maxPoints), max defaulting to the key's total.
type pointsMatcher struct{}

func (pointsMatcher) bounds(b domain.GradeBoundary, total float64) (lo, hi float64, ok bool) {
	if b.MinPoints == nil {
		return 0, 0, false
	}
	hi = total
	if b.MaxPoints != nil {
		hi = *b.MaxPoints
	}
	return *b.MinPoints, hi, true
}

func (m pointsMatcher) Contains(b domain.GradeBoundary, s score, top bool) bool {
	lo, hi, ok := m.bounds(b, s.total)
	if !ok {
		return false
	}
	return inRange(s.points, lo, hi, top)
}

func (m pointsMatcher) AboveRange(b domain.GradeBoundary, s score) bool {
	_, hi, ok := m.bounds(b, s.total)
	return ok && s.points > hi
}

func inRange(v, lo, hi float64, closedTop bool) bool {
	if v < lo {
		return false
	}
	if closedTop {
		return v <= hi
	}
	return v < hi
}
