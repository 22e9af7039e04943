package keys

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradekey/internal/audit"
	"gradekey/internal/domain"
)

func TestValidateGradingKey_Valid(t *testing.T) {
	e := newTestEngine(audit.NewMemoryLog())
	v := e.ValidateGradingKey(ihkKey(e))
	assert.True(t, v.Valid)
	assert.NotNil(t, v.Errors)
	assert.Empty(t, v.Errors)
}

func TestValidateGradingKey_ConvertedPointsKeyIsValid(t *testing.T) {
	e := newTestEngine(audit.NewMemoryLog())
	v := e.ValidateGradingKey(e.ConvertToPointsBased(ihkKey(e), 50))
	assert.True(t, v.Valid, v.Errors)
}

func TestValidateGradingKey_Violations(t *testing.T) {
	e := newTestEngine(audit.NewMemoryLog())

	tests := []struct {
		name   string
		mutate func(*domain.GradingKey)
		want   []string
	}{
		{
			name:   "single boundary",
			mutate: func(k *domain.GradingKey) { k.GradeBoundaries = []domain.GradeBoundary{boundary("1", 0)} },
			want:   []string{"at least 2"},
		},
		{
			name:   "lowest boundary above zero",
			mutate: func(k *domain.GradingKey) { k.GradeBoundaries[5].MinPercentage = domain.Float(10) },
			want:   []string{"Lowest grade 6 must start at 0%"},
		},
		{
			name:   "tied thresholds",
			mutate: func(k *domain.GradingKey) { k.GradeBoundaries[1].MinPercentage = domain.Float(92) },
			want:   []string{"Grade 1 (92%) must have a higher minimum than grade 2 (92%)"},
		},
		{
			name:   "inverted thresholds",
			mutate: func(k *domain.GradingKey) { k.GradeBoundaries[2].MinPercentage = domain.Float(85) },
			want:   []string{"Grade 2 (81%) must have a higher minimum than grade 3 (85%)"},
		},
		{
			name:   "zero total points",
			mutate: func(k *domain.GradingKey) { k.TotalPoints = 0 },
			want:   []string{"Total points must be greater than 0"},
		},
		{
			name:   "negative decimal places",
			mutate: func(k *domain.GradingKey) { k.RoundingRule.DecimalPlaces = -1 },
			want:   []string{"decimal places must not be negative"},
		},
		{
			name:   "points key without point thresholds",
			mutate: func(k *domain.GradingKey) { k.Type = domain.KeyTypePoints },
			want:   []string{"Grade 1 has no minimum points", "Grade 6 has no minimum points"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := ihkKey(e)
			tt.mutate(&key)
			v := e.ValidateGradingKey(key)
			assert.False(t, v.Valid)
			for _, w := range tt.want {
				assert.True(t, containsSubstring(v.Errors, w), "missing %q in %v", w, v.Errors)
			}
		})
	}
}

func TestValidateGradingKey_ReportsEveryViolation(t *testing.T) {
	e := newTestEngine(audit.NewMemoryLog())
	key := ihkKey(e)
	key.GradeBoundaries = []domain.GradeBoundary{boundary("1", 40)}
	key.TotalPoints = -1
	v := e.ValidateGradingKey(key)
	assert.Len(t, v.Errors, 3)
}

func TestValidateGradingKey_EmptyKeyDoesNotPanic(t *testing.T) {
	e := newTestEngine(audit.NewMemoryLog())
	assert.NotPanics(t, func() {
		v := e.ValidateGradingKey(domain.GradingKey{})
		assert.False(t, v.Valid)
	})
}

func TestCompareGradingKeys(t *testing.T) {
	e := newTestEngine(audit.NewMemoryLog())
	key := ihkKey(e)

	same := e.CompareGradingKeys(key, key.Clone())
	assert.True(t, same.IsSame)
	assert.NotNil(t, same.Changes)
	assert.Empty(t, same.Changes)

	renamed := key.Clone()
	renamed.Name = "IHK 2026"
	c := e.CompareGradingKeys(key, renamed)
	assert.False(t, c.IsSame)
	require.Len(t, c.Changes, 1)
	assert.Contains(t, c.Changes[0], "Name changed")

	retyped := key.Clone()
	retyped.Type = domain.KeyTypePoints
	retyped.RoundingRule = domain.RoundingRule{Type: domain.RoundUp, DecimalPlaces: 0}
	retyped.GradeBoundaries[0].MinPercentage = domain.Float(90)
	c = e.CompareGradingKeys(key, retyped)
	require.Len(t, c.Changes, 3)
	assert.Contains(t, c.Changes[0], "Type changed from percentage to points")
	assert.Contains(t, c.Changes[1], "grade 1 >=92% -> >=90%")
	assert.Contains(t, c.Changes[2], "Rounding rule changed from nearest(1) to up(0)")
}

func TestCompareGradingKeys_BoundaryCountAndLabels(t *testing.T) {
	e := newTestEngine(audit.NewMemoryLog())
	key := ihkKey(e)

	shorter := key.Clone()
	shorter.GradeBoundaries = shorter.GradeBoundaries[:5]
	c := e.CompareGradingKeys(key, shorter)
	require.Len(t, c.Changes, 1)
	assert.Contains(t, c.Changes[0], "6 -> 5 boundaries")

	relabeled := key.Clone()
	relabeled.GradeBoundaries[0].DisplayValue = "sehr gut"
	c = e.CompareGradingKeys(key, relabeled)
	require.Len(t, c.Changes, 1)
	assert.Contains(t, c.Changes[0], `grade 1 label "1" -> "sehr gut"`)
}

func containsSubstring(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
