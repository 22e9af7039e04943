package keys

import (
	"fmt"
	"strconv"
	"strings"

	"gradekey/internal/domain"
)

type Validation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidateGradingKey checks the structural invariants of a key and reports
// every violation found. It never fails.
func (e *Engine) ValidateGradingKey(key domain.GradingKey) Validation {
	var errs []string
	bs := key.GradeBoundaries

	if len(bs) < 2 {
		errs = append(errs, fmt.Sprintf("Grading key must have at least 2 grade boundaries, has %d", len(bs)))
	}
	if key.TotalPoints <= 0 {
		errs = append(errs, fmt.Sprintf("Total points must be greater than 0, got %s", num(key.TotalPoints)))
	}
	if key.RoundingRule.DecimalPlaces < 0 {
		errs = append(errs, fmt.Sprintf("Rounding decimal places must not be negative, got %d", key.RoundingRule.DecimalPlaces))
	}

	unit, minOf := thresholdAccessor(key.Type)
	for _, b := range bs {
		if minOf(b) == nil {
			errs = append(errs, fmt.Sprintf("Grade %s has no minimum %s", b.Grade, unit.name))
		}
	}
	for i := 0; i+1 < len(bs); i++ {
		hi, lo := minOf(bs[i]), minOf(bs[i+1])
		if hi == nil || lo == nil {
			continue
		}
		if *hi <= *lo {
			errs = append(errs, fmt.Sprintf(
				"Grade %s (%s) must have a higher minimum than grade %s (%s)",
				bs[i].Grade, unit.format(*hi), bs[i+1].Grade, unit.format(*lo)))
		}
	}
	if len(bs) > 0 {
		last := bs[len(bs)-1]
		if m := minOf(last); m != nil && *m != 0 {
			errs = append(errs, fmt.Sprintf("Lowest grade %s must start at %s, starts at %s",
				last.Grade, unit.format(0), unit.format(*m)))
		}
	}

	if errs == nil {
		errs = []string{}
	}
	return Validation{Valid: len(errs) == 0, Errors: errs}
}

type thresholdUnit struct {
	name   string
	suffix string
}

func (u thresholdUnit) format(v float64) string { return num(v) + u.suffix }

func thresholdAccessor(t domain.KeyType) (thresholdUnit, func(domain.GradeBoundary) *float64) {
	if t == domain.KeyTypePoints {
		return thresholdUnit{name: "points", suffix: " pts"},
			func(b domain.GradeBoundary) *float64 { return b.MinPoints }
	}
	return thresholdUnit{name: "percentage", suffix: "%"},
		func(b domain.GradeBoundary) *float64 { return b.MinPercentage }
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

type Comparison struct {
	Changes []string `json:"changes"`
	IsSame  bool     `json:"isSame"`
}

// CompareGradingKeys lists name, type, boundary and rounding differences
// between a and b, one entry per changed aspect.
func (e *Engine) CompareGradingKeys(a, b domain.GradingKey) Comparison {
	changes := []string{}
	if a.Name != b.Name {
		changes = append(changes, fmt.Sprintf("Name changed from %q to %q", a.Name, b.Name))
	}
	if a.Type != b.Type {
		changes = append(changes, fmt.Sprintf("Type changed from %s to %s", a.Type, b.Type))
	}
	if !boundariesEqual(a.GradeBoundaries, b.GradeBoundaries) {
		changes = append(changes, "Grade boundaries changed: "+describeBoundaryDiff(a.GradeBoundaries, b.GradeBoundaries))
	}
	if a.RoundingRule != b.RoundingRule {
		changes = append(changes, fmt.Sprintf("Rounding rule changed from %s to %s",
			describeRule(a.RoundingRule), describeRule(b.RoundingRule)))
	}
	return Comparison{Changes: changes, IsSame: len(changes) == 0}
}

func boundariesEqual(a, b []domain.GradeBoundary) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func describeBoundaryDiff(a, b []domain.GradeBoundary) string {
	if len(a) != len(b) {
		return fmt.Sprintf("%d -> %d boundaries", len(a), len(b))
	}
	var parts []string
	for i := range a {
		if a[i].Equal(b[i]) {
			continue
		}
		if a[i].Grade != b[i].Grade {
			parts = append(parts, fmt.Sprintf("grade %s replaced by %s", a[i].Grade, b[i].Grade))
			continue
		}
		from, to := describeRange(a[i]), describeRange(b[i])
		if from == to {
			parts = append(parts, fmt.Sprintf("grade %s label %q -> %q", a[i].Grade, a[i].DisplayValue, b[i].DisplayValue))
			continue
		}
		parts = append(parts, fmt.Sprintf("grade %s %s -> %s", a[i].Grade, from, to))
	}
	return strings.Join(parts, ", ")
}

func describeRange(b domain.GradeBoundary) string {
	var parts []string
	if b.MinPercentage != nil {
		s := ">=" + num(*b.MinPercentage) + "%"
		if b.MaxPercentage != nil {
			s += " <" + num(*b.MaxPercentage) + "%"
		}
		parts = append(parts, s)
	}
	if b.MinPoints != nil {
		s := ">=" + num(*b.MinPoints) + " pts"
		if b.MaxPoints != nil {
			s += " <" + num(*b.MaxPoints) + " pts"
		}
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return "(unbounded)"
	}
	return strings.Join(parts, " / ")
}

func describeRule(r domain.RoundingRule) string {
	return fmt.Sprintf("%s(%d)", r.Type, r.DecimalPlaces)
}
