package keys

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"gradekey/internal/domain"
	"gradekey/internal/grading"
)

const (
	lowestGradeAlarm = 0.30 // share of candidates on the lowest grade
	topGradeAlarm    = 0.30 // share of candidates on the top grade
	lowerBy          = 5.0
	raiseTopBy       = 3.0
)

type GradeCount struct {
	Grade domain.Grade `json:"grade"`
	Count int          `json:"count"`
	Share float64      `json:"share"`
}

// Suggestion is advisory output; Boundaries equals the current set when no
// strong signal was found.
type Suggestion struct {
	Distribution []GradeCount           `json:"distribution"`
	Reasoning    []string               `json:"reasoning"`
	Boundaries   []domain.GradeBoundary `json:"suggestedBoundaries"`
	Changed      bool                   `json:"changed"`
}

// SuggestGradingKeyAdjustments looks at how corrections distribute across the
// grades of key. With a target distribution (grade -> share of candidates) the
// thresholds are moved to the matching score quantiles; without one, simple
// skew heuristics apply.
func (e *Engine) SuggestGradingKeyAdjustments(corrections []domain.CorrectionEntry, key domain.GradingKey, target map[domain.Grade]float64) Suggestion {
	bs := key.GradeBoundaries
	s := Suggestion{
		Distribution: []GradeCount{},
		Reasoning:    []string{},
		Boundaries:   domain.CloneBoundaries(bs),
	}
	if s.Boundaries == nil {
		s.Boundaries = []domain.GradeBoundary{}
	}
	if len(bs) == 0 {
		s.Reasoning = append(s.Reasoning, "Grading key has no boundaries; nothing to suggest")
		return s
	}
	if len(corrections) == 0 {
		s.Reasoning = append(s.Reasoning, "No corrections to analyze; keeping current boundaries")
		return s
	}

	counts := map[domain.Grade]int{}
	pcts := make([]float64, 0, len(corrections))
	for _, c := range corrections {
		r := e.resolver.CalculateGrade(c.TotalPoints, key)
		counts[r.Grade]++
		pcts = append(pcts, r.Percentage)
	}
	n := float64(len(corrections))
	summary := make([]string, 0, len(bs))
	for _, b := range bs {
		gc := GradeCount{Grade: b.Grade, Count: counts[b.Grade], Share: float64(counts[b.Grade]) / n}
		s.Distribution = append(s.Distribution, gc)
		summary = append(summary, fmt.Sprintf("%s: %d (%.0f%%)", gc.Grade, gc.Count, gc.Share*100))
	}
	s.Reasoning = append(s.Reasoning, fmt.Sprintf("Analyzed %d corrections: %s", len(corrections), strings.Join(summary, ", ")))

	current := make([]float64, len(bs))
	for i, b := range bs {
		v, ok := b.MinPercentOf(key.TotalPoints)
		if !ok {
			s.Reasoning = append(s.Reasoning, fmt.Sprintf("Grade %s has no threshold; no adjustment computed", b.Grade))
			return s
		}
		current[i] = v
	}

	var next []float64
	if len(target) > 0 {
		next = fromTargetDistribution(bs, pcts, target)
		s.Reasoning = append(s.Reasoning, fmt.Sprintf("Thresholds placed at the target quantiles of %d observed scores", len(pcts)))
	} else {
		var why []string
		next, why = fromSkew(s.Distribution, current)
		s.Reasoning = append(s.Reasoning, why...)
	}
	if next == nil || slices.Equal(next, current) {
		s.Reasoning = append(s.Reasoning, "No strong signal found; keeping current boundaries")
		return s
	}
	s.Boundaries = withThresholds(bs, next, key.TotalPoints)
	s.Changed = true
	return s
}

func fromTargetDistribution(bs []domain.GradeBoundary, pcts []float64, target map[domain.Grade]float64) []float64 {
	sorted := slices.Clone(pcts)
	slices.SortFunc(sorted, func(a, b float64) int { return cmp.Compare(b, a) })

	th := make([]float64, len(bs))
	cum := 0.0
	for i := 0; i < len(bs)-1; i++ {
		cum += target[bs[i].Grade]
		if cum <= 0 {
			// nobody should reach this grade
			th[i] = math.Min(100, sorted[0]+1)
			continue
		}
		idx := int(math.Ceil(cum*float64(len(sorted))-1e-9)) - 1
		idx = max(0, min(idx, len(sorted)-1))
		th[i] = sorted[idx]
	}
	return strictlyDescending(th)
}

func fromSkew(dist []GradeCount, current []float64) ([]float64, []string) {
	var why []string
	th := slices.Clone(current)
	changed := false

	lowest := dist[len(dist)-1]
	if lowest.Share > lowestGradeAlarm {
		why = append(why, fmt.Sprintf("%.0f%% of candidates received the lowest grade %s; lowering thresholds by %s percentage points",
			lowest.Share*100, lowest.Grade, num(lowerBy)))
		for i := 0; i < len(th)-1; i++ {
			th[i] -= lowerBy
		}
		changed = true
	}
	top := dist[0]
	if len(dist) > 1 && top.Share > topGradeAlarm {
		why = append(why, fmt.Sprintf("%.0f%% of candidates received the top grade %s; raising its threshold by %s percentage points",
			top.Share*100, top.Grade, num(raiseTopBy)))
		th[0] = math.Min(100, th[0]+raiseTopBy)
		changed = true
	}
	if !changed {
		return nil, why
	}
	return strictlyDescending(th), why
}

// strictlyDescending pins the last threshold to 0 and lifts any threshold that
// does not exceed the one below it.
func strictlyDescending(th []float64) []float64 {
	n := len(th)
	if n == 0 {
		return th
	}
	th[n-1] = 0
	for i := n - 2; i >= 0; i-- {
		if th[i] <= th[i+1] {
			th[i] = th[i+1] + 1
		}
	}
	return th
}

func withThresholds(bs []domain.GradeBoundary, th []float64, total float64) []domain.GradeBoundary {
	out := domain.CloneBoundaries(bs)
	for i := range out {
		b := &out[i]
		if b.MinPercentage != nil {
			b.MinPercentage = domain.Float(th[i])
		}
		if b.MinPoints != nil {
			b.MinPoints = domain.Float(grading.PointsForPercentage(th[i], total))
		}
		if i == 0 {
			continue
		}
		if b.MaxPercentage != nil {
			b.MaxPercentage = domain.Float(th[i-1])
		}
		if b.MaxPoints != nil {
			b.MaxPoints = domain.Float(grading.PointsForPercentage(th[i-1], total))
		}
	}
	return out
}
