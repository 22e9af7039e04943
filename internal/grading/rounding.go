package grading

import (
	"math"

	"github.com/shopspring/decimal"

	"gradekey/internal/domain"
)

// ApplyRounding rounds value according to rule at rule.DecimalPlaces precision.
// Unknown rounding types leave the value untouched.
func ApplyRounding(value float64, rule domain.RoundingRule) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return value
	}
	places := int32(max(rule.DecimalPlaces, 0))
	d := decimal.NewFromFloat(value)
	switch rule.Type {
	case domain.RoundUp:
		d = d.RoundCeil(places)
	case domain.RoundDown:
		d = d.RoundFloor(places)
	case domain.RoundNearest:
		// decimal.Round rounds half away from zero.
		d = d.Round(places)
	default:
		return value
	}
	f, _ := d.Float64()
	return f
}

// CalculatePercentage returns points as a percentage of maxPoints, rounded to
// one decimal place. A zero maximum yields 0.
func CalculatePercentage(points, maxPoints float64) float64 {
	if maxPoints == 0 {
		return 0
	}
	return ApplyRounding(points*100/maxPoints, domain.RoundingRule{Type: domain.RoundNearest, DecimalPlaces: 1})
}

// PointsForPercentage returns ceil(pct/100*total), computed in decimal so that
// e.g. 92% of 50 is exactly 46 rather than 46.000000000000007.
func PointsForPercentage(pct, total float64) float64 {
	f, _ := pointsAt(pct, total).Ceil().Float64()
	return f
}

func pointsAt(pct, total float64) decimal.Decimal {
	return decimal.NewFromFloat(pct).Mul(decimal.NewFromFloat(total)).Div(decimal.NewFromInt(100))
}
