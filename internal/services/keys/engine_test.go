package keys

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gradekey/internal/adapters/memory"
	"gradekey/internal/audit"
	"gradekey/internal/domain"
	"gradekey/internal/ports"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newTestEngine(log ports.AuditLog) *Engine {
	n := 0
	return New(log,
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("key-%d", n) }),
	)
}

func boundary(grade string, minPct float64) domain.GradeBoundary {
	return domain.GradeBoundary{Grade: domain.Grade(grade), DisplayValue: grade, MinPercentage: domain.Float(minPct)}
}

func ihkBoundaries() []domain.GradeBoundary {
	return []domain.GradeBoundary{
		boundary("1", 92), boundary("2", 81), boundary("3", 70),
		boundary("4", 60), boundary("5", 50), boundary("6", 0),
	}
}

func ihkKey(e *Engine) domain.GradingKey {
	return e.CreateCustomGradingKey("IHK", 100, ihkBoundaries(), nil)
}

func TestCreateCustomGradingKey(t *testing.T) {
	e := newTestEngine(audit.NewMemoryLog())
	key := ihkKey(e)

	assert.Equal(t, "key-1", key.ID)
	assert.Equal(t, "IHK", key.Name)
	assert.Equal(t, domain.KeyTypePercentage, key.Type)
	assert.Equal(t, 100.0, key.TotalPoints)
	assert.True(t, key.Customizable)
	assert.False(t, key.ModifiedAfterCorrection)
	assert.Equal(t, domain.DefaultRoundingRule, key.RoundingRule)
	assert.Equal(t, 1, key.Version)
	assert.Equal(t, fixedNow, key.CreatedAt)
	assert.Len(t, key.GradeBoundaries, 6)
}

func TestCreateCustomGradingKey_SortsDescendingKeepingTies(t *testing.T) {
	e := newTestEngine(audit.NewMemoryLog())
	in := []domain.GradeBoundary{
		boundary("3", 70), boundary("1", 92), boundary("6", 0),
		boundary("2a", 81), boundary("2b", 81),
		{Grade: "x"},
	}
	key := e.CreateCustomGradingKey("custom", 50, in, nil)

	var grades []domain.Grade
	for _, b := range key.GradeBoundaries {
		grades = append(grades, b.Grade)
	}
	assert.Equal(t, []domain.Grade{"1", "2a", "2b", "3", "6", "x"}, grades)
	assert.Equal(t, domain.Grade("3"), in[0].Grade, "input slice must not be reordered")
}

func TestCreateCustomGradingKey_CustomRoundingRule(t *testing.T) {
	e := newTestEngine(audit.NewMemoryLog())
	rule := domain.RoundingRule{Type: domain.RoundDown, DecimalPlaces: 0}
	key := e.CreateCustomGradingKey("floor", 100, ihkBoundaries(), &rule)
	assert.Equal(t, rule, key.RoundingRule)
}

func TestConvertToPointsBased(t *testing.T) {
	e := newTestEngine(audit.NewMemoryLog())
	key := ihkKey(e)
	key.GradeBoundaries[1].MaxPercentage = domain.Float(92)

	pts := e.ConvertToPointsBased(key, 50)

	require.Len(t, pts.GradeBoundaries, 6)
	assert.Equal(t, domain.KeyTypePoints, pts.Type)
	assert.Equal(t, 50.0, pts.TotalPoints)
	assert.Equal(t, 46.0, *pts.GradeBoundaries[0].MinPoints)
	assert.Equal(t, 41.0, *pts.GradeBoundaries[1].MinPoints)
	assert.Equal(t, 46.0, *pts.GradeBoundaries[1].MaxPoints)
	assert.Equal(t, 35.0, *pts.GradeBoundaries[2].MinPoints)
	assert.Equal(t, 0.0, *pts.GradeBoundaries[5].MinPoints)
	assert.Equal(t, 92.0, *pts.GradeBoundaries[0].MinPercentage, "percentage fields are retained")
	assert.Equal(t, domain.Grade("1"), pts.GradeBoundaries[0].Grade, "order is unchanged")

	assert.Nil(t, key.GradeBoundaries[0].MinPoints, "source key is untouched")
	assert.Equal(t, domain.KeyTypePercentage, key.Type)
}

func TestModifyGradingKeyAfterCorrection_AppendsOneRecordPerCall(t *testing.T) {
	ctx := context.Background()
	log := audit.NewMemoryLog()
	e := newTestEngine(log)
	key := ihkKey(e)

	first := ihkBoundaries()
	first[0].MinPercentage = domain.Float(90)
	reason, who := "curve", "alice"
	k2, err := e.ModifyGradingKeyAfterCorrection(ctx, key, first, &reason, &who)
	require.NoError(t, err)
	assert.True(t, k2.ModifiedAfterCorrection)
	assert.Equal(t, 2, k2.Version)
	assert.Equal(t, key.ID, k2.ID)
	assert.Equal(t, 90.0, *k2.GradeBoundaries[0].MinPercentage)

	hist, err := log.History(ctx, key.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)

	second := ihkBoundaries()
	second[0].MinPercentage = domain.Float(88)
	k3, err := e.ModifyGradingKeyAfterCorrection(ctx, k2, second, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, k3.Version)

	hist, err = log.History(ctx, key.ID)
	require.NoError(t, err)
	require.Len(t, hist, 2)

	assert.Equal(t, 92.0, *hist[0].PreviousKey.GradeBoundaries[0].MinPercentage)
	assert.False(t, hist[0].PreviousKey.ModifiedAfterCorrection)
	assert.Equal(t, 90.0, *hist[0].NewKey.GradeBoundaries[0].MinPercentage)
	assert.Equal(t, "curve", *hist[0].Reason)
	assert.Equal(t, "alice", *hist[0].ChangedBy)
	assert.Equal(t, fixedNow, hist[0].Timestamp)
	assert.NotEmpty(t, hist[0].ID)

	assert.Equal(t, 90.0, *hist[1].PreviousKey.GradeBoundaries[0].MinPercentage)
	assert.True(t, hist[1].PreviousKey.ModifiedAfterCorrection)
	assert.Equal(t, 88.0, *hist[1].NewKey.GradeBoundaries[0].MinPercentage)
	assert.Nil(t, hist[1].Reason)
	assert.NotEqual(t, hist[0].ID, hist[1].ID)
}

func TestModifyGradingKeyAfterCorrection_DoesNotAliasInput(t *testing.T) {
	e := newTestEngine(audit.NewMemoryLog())
	key := ihkKey(e)
	bs := ihkBoundaries()
	out, err := e.ModifyGradingKeyAfterCorrection(context.Background(), key, bs, nil, nil)
	require.NoError(t, err)

	*bs[0].MinPercentage = 1
	assert.Equal(t, 92.0, *out.GradeBoundaries[0].MinPercentage)
}

func TestModifyGradingKeyAfterCorrection_AuditFailure(t *testing.T) {
	log := &ports.MockAuditLog{}
	log.On("Append", mock.Anything, "key-1", mock.AnythingOfType("domain.ChangeRecord")).Return(errors.New("disk full"))
	e := newTestEngine(log)
	key := ihkKey(e)

	out, err := e.ModifyGradingKeyAfterCorrection(context.Background(), key, ihkBoundaries(), nil, nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")
	assert.ErrorContains(t, err, "key-1")
	assert.Empty(t, out.ID)
	log.AssertNumberOfCalls(t, "Append", 1)
}

func TestNew_NilAuditLogKeepsHistoryInMemory(t *testing.T) {
	ctx := context.Background()
	e := New(nil)
	key := ihkKey(e)

	_, err := e.ModifyGradingKeyAfterCorrection(ctx, key, ihkBoundaries(), nil, nil)
	require.NoError(t, err)
	out, err := e.ExportChangeHistory(ctx, key.ID)
	require.NoError(t, err)
	assert.NotEqual(t, NoChangesRecorded, out)
}

func TestModifyExamGradingKey(t *testing.T) {
	ctx := context.Background()
	log := audit.NewMemoryLog()
	e := newTestEngine(log)
	store := memory.New()
	key := ihkKey(e)
	require.NoError(t, store.Exams.Create(ctx, domain.Exam{ID: "exam-1", GradingKey: key}))

	bs := ihkBoundaries()
	bs[0].MinPercentage = domain.Float(90)
	out, err := e.ModifyExamGradingKey(ctx, store.Exams, "exam-1", key, bs, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Version)

	exam, _, err := store.Exams.FindByID(ctx, "exam-1")
	require.NoError(t, err)
	assert.Equal(t, out, exam.GradingKey)
	hist, err := log.History(ctx, key.ID)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestModifyExamGradingKey_StaleKeyLeavesNoRecord(t *testing.T) {
	ctx := context.Background()
	log := audit.NewMemoryLog()
	e := newTestEngine(log)
	store := memory.New()
	key := ihkKey(e)
	require.NoError(t, store.Exams.Create(ctx, domain.Exam{ID: "exam-1", GradingKey: key}))

	first := ihkBoundaries()
	first[0].MinPercentage = domain.Float(90)
	_, err := e.ModifyExamGradingKey(ctx, store.Exams, "exam-1", key, first, nil, nil)
	require.NoError(t, err)

	second := ihkBoundaries()
	second[0].MinPercentage = domain.Float(95)
	_, err = e.ModifyExamGradingKey(ctx, store.Exams, "exam-1", key, second, nil, nil)
	assert.ErrorIs(t, err, domain.ErrConflict)

	exam, _, _ := store.Exams.FindByID(ctx, "exam-1")
	assert.Equal(t, domain.Float(90), exam.GradingKey.GradeBoundaries[0].MinPercentage)
	hist, err := log.History(ctx, key.ID)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestModifyExamGradingKey_AuditFailureRestoresKey(t *testing.T) {
	ctx := context.Background()
	log := &ports.MockAuditLog{}
	log.On("Append", mock.Anything, "key-1", mock.AnythingOfType("domain.ChangeRecord")).Return(errors.New("disk full"))
	e := newTestEngine(log)
	store := memory.New()
	key := ihkKey(e)
	require.NoError(t, store.Exams.Create(ctx, domain.Exam{ID: "exam-1", GradingKey: key}))

	_, err := e.ModifyExamGradingKey(ctx, store.Exams, "exam-1", key, ihkBoundaries()[:5], nil, nil)
	assert.ErrorContains(t, err, "disk full")

	exam, _, _ := store.Exams.FindByID(ctx, "exam-1")
	assert.Equal(t, key, exam.GradingKey)
	log.AssertNumberOfCalls(t, "Append", 1)
}

func TestCloneWithModifications(t *testing.T) {
	e := newTestEngine(audit.NewMemoryLog())
	src := ihkKey(e)
	src.ModifiedAfterCorrection = true
	src.Version = 4

	name := "IHK (copy)"
	clone := e.CloneWithModifications(src, KeyPatch{Name: &name})

	assert.Equal(t, "key-2", clone.ID)
	assert.Equal(t, name, clone.Name)
	assert.False(t, clone.ModifiedAfterCorrection)
	assert.Equal(t, 1, clone.Version)
	assert.Equal(t, src.TotalPoints, clone.TotalPoints)
	assert.Equal(t, src.RoundingRule, clone.RoundingRule)
	require.Len(t, clone.GradeBoundaries, 6)

	*clone.GradeBoundaries[0].MinPercentage = 10
	assert.Equal(t, 92.0, *src.GradeBoundaries[0].MinPercentage, "clone shares no boundaries with its source")
}

func TestCloneWithModifications_AllFields(t *testing.T) {
	e := newTestEngine(audit.NewMemoryLog())
	src := ihkKey(e)
	typ := domain.KeyTypePoints
	total := 60.0
	rule := domain.RoundingRule{Type: domain.RoundUp}
	no, yes := false, true
	clone := e.CloneWithModifications(src, KeyPatch{
		Type:               &typ,
		TotalPoints:        &total,
		GradeBoundaries:    ihkBoundaries()[:2],
		RoundingRule:       &rule,
		Customizable:       &no,
		ErrorPointsToGrade: &yes,
	})
	assert.Equal(t, typ, clone.Type)
	assert.Equal(t, total, clone.TotalPoints)
	assert.Len(t, clone.GradeBoundaries, 2)
	assert.Equal(t, rule, clone.RoundingRule)
	assert.False(t, clone.Customizable)
	assert.True(t, clone.ErrorPointsToGrade)
	assert.Equal(t, src.Name, clone.Name)
}
