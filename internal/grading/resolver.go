// Package grading resolves scores to grades against a grading key.
package grading

import (
	"math"

	"github.com/shopspring/decimal"

	"gradekey/internal/domain"
)

// Result is the outcome of resolving a score against a key.
type Result struct {
	Grade      domain.Grade `json:"grade"`
	Percentage float64      `json:"percentage"`
}

// OverflowPolicy decides the grade for a score no boundary contains.
type OverflowPolicy string

const (
	// OverflowWorstGrade falls back to the lowest-ranked boundary for every
	// unmatched score, including scores above 100% from bonus points.
	OverflowWorstGrade OverflowPolicy = "worst"
	// OverflowBestGrade maps scores above the top boundary's range to the top
	// grade. Other unmatched scores still fall back to the lowest boundary.
	OverflowBestGrade OverflowPolicy = "best"
)

// Resolver turns points into grades. The zero value is not usable; call NewResolver.
type Resolver struct {
	overflow     OverflowPolicy
	roundToMatch bool
	matchers     map[domain.KeyType]BoundaryMatcher
}

type Option func(*Resolver)

func WithOverflowPolicy(p OverflowPolicy) Option {
	return func(r *Resolver) {
		if p == OverflowBestGrade || p == OverflowWorstGrade {
			r.overflow = p
		}
	}
}

// WithRoundedMatching applies the key's RoundingRule to the percentage before
// it is matched and reported. By default the unrounded ratio is used.
func WithRoundedMatching() Option {
	return func(r *Resolver) { r.roundToMatch = true }
}

// NewResolver installs the built-in matchers.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		overflow: OverflowWorstGrade,
		matchers: map[domain.KeyType]BoundaryMatcher{
			domain.KeyTypePercentage: percentageMatcher{},
			domain.KeyTypePoints:     pointsMatcher{},
		},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

var defaultResolver = NewResolver()

// CalculateGrade resolves points with the default (worst-grade fallback) resolver.
func CalculateGrade(points float64, key domain.GradingKey) Result {
	return defaultResolver.CalculateGrade(points, key)
}

// PointsToNextGrade uses the default resolver.
func PointsToNextGrade(currentPoints float64, key domain.GradingKey) float64 {
	return defaultResolver.PointsToNextGrade(currentPoints, key)
}

// Overflow returns the configured overflow policy.
func (r *Resolver) Overflow() OverflowPolicy { return r.overflow }

// CalculateGrade returns the grade of the first boundary, in stored order, whose
// range contains the score. Keys without boundaries resolve to domain.NoGrade.
func (r *Resolver) CalculateGrade(points float64, key domain.GradingKey) Result {
	s := r.score(points, key)
	res := Result{Grade: domain.NoGrade, Percentage: s.percentage}
	bs := key.GradeBoundaries
	if len(bs) == 0 {
		return res
	}

	m := r.matcher(key.Type)
	for i, b := range bs {
		if m.Contains(b, s, i == 0) {
			res.Grade = b.Grade
			return res
		}
	}

	if r.overflow == OverflowBestGrade && m.AboveRange(bs[0], s) {
		res.Grade = bs[0].Grade
		return res
	}
	res.Grade = bs[len(bs)-1].Grade
	return res
}

// PointsToNextGrade returns how many whole points are missing to reach the next
// better grade, or 0 when the score already sits in the top grade.
func (r *Resolver) PointsToNextGrade(currentPoints float64, key domain.GradingKey) float64 {
	if key.TotalPoints <= 0 {
		return 0
	}
	pct := r.score(currentPoints, key).percentage

	next, found := 0.0, false
	for _, b := range key.GradeBoundaries {
		lo, ok := b.MinPercentOf(key.TotalPoints)
		if !ok || lo <= pct {
			continue
		}
		if !found || lo < next {
			next, found = lo, true
		}
	}
	if !found {
		return 0
	}
	needed := pointsAt(next, key.TotalPoints).Sub(decimal.NewFromFloat(currentPoints)).Ceil()
	f, _ := needed.Float64()
	return math.Max(0, f)
}

func (r *Resolver) score(points float64, key domain.GradingKey) score {
	pct := 0.0
	if key.TotalPoints > 0 {
		pct = points * 100 / key.TotalPoints
		if r.roundToMatch {
			pct = ApplyRounding(pct, key.RoundingRule)
		}
	}
	return score{points: points, percentage: pct, total: key.TotalPoints}
}

func (r *Resolver) matcher(t domain.KeyType) BoundaryMatcher {
	if m, ok := r.matchers[t]; ok {
		return m
	}
	return r.matchers[domain.KeyTypePercentage]
}
