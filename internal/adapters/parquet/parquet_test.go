package parquet

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradekey/internal/domain"
)

func sampleExam() (domain.Exam, []domain.CorrectionEntry) {
	at := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	by := "examiner-1"
	exam := domain.Exam{
		ID:    "e1",
		Title: "Final",
		GradingKey: domain.GradingKey{
			ID: "k1", TotalPoints: 50, Version: 3,
		},
	}
	entries := []domain.CorrectionEntry{
		{
			ExamID: "e1", CandidateID: "s1", TotalPoints: 45, PercentageScore: 90, TotalGrade: "2",
			Status: domain.StatusCompleted, CorrectedBy: &by, CorrectedAt: &at, LastModified: at,
			TaskScores: []domain.TaskScore{{TaskID: "t1"}, {TaskID: "t2"}},
		},
		{
			ExamID: "e1", CandidateID: "s2", TotalPoints: 12, PercentageScore: 24, TotalGrade: "6",
			Status: domain.StatusInProgress, LastModified: at,
		},
	}
	return exam, entries
}

func TestCorrectionRowStructTags(t *testing.T) {
	schema := parquet.SchemaOf(new(CorrectionRow))
	require.NotNil(t, schema)
	for _, col := range []string{
		"exam_id", "candidate_id", "key_id", "key_version", "total_points", "max_points",
		"percentage_score", "grade", "status", "task_count", "corrected_by", "corrected_at", "last_modified",
	} {
		_, ok := schema.Lookup(col)
		assert.True(t, ok, "column %s should exist in schema", col)
	}
}

func TestRows(t *testing.T) {
	exam, entries := sampleExam()
	rows := Rows(exam, entries)
	require.Len(t, rows, 2)
	assert.Equal(t, "k1", rows[0].KeyID)
	assert.Equal(t, int32(3), rows[0].KeyVersion)
	assert.Equal(t, 50.0, rows[0].MaxPoints)
	assert.Equal(t, int32(2), rows[0].TaskCount)
	assert.Equal(t, "6", rows[1].Grade)
	assert.Nil(t, rows[1].CorrectedAt)
}

func TestWriteCorrectionsFile(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "corrections.parquet")
	exam, entries := sampleExam()
	data := Rows(exam, entries)
	require.NoError(t, WriteCorrectionsFile(data, outputPath))

	file, err := os.Open(outputPath)
	require.NoError(t, err)
	defer file.Close()

	reader := parquet.NewGenericReader[CorrectionRow](file)
	defer reader.Close()

	readData := make([]CorrectionRow, reader.NumRows())
	n, err := reader.Read(readData)
	if err != nil && err != io.EOF {
		require.NoError(t, err)
	}
	require.Equal(t, len(data), n)

	for i := range data {
		assert.Equal(t, data[i].CandidateID, readData[i].CandidateID)
		assert.Equal(t, data[i].Grade, readData[i].Grade)
		assert.InDelta(t, data[i].PercentageScore, readData[i].PercentageScore, 1e-9)
		assert.WithinDuration(t, data[i].LastModified, readData[i].LastModified, time.Nanosecond)
		if data[i].CorrectedBy == nil {
			assert.Nil(t, readData[i].CorrectedBy)
		} else {
			require.NotNil(t, readData[i].CorrectedBy)
			assert.Equal(t, *data[i].CorrectedBy, *readData[i].CorrectedBy)
		}
	}
}

func TestWriteCorrectionsFile_Empty(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "empty.parquet")
	require.NoError(t, WriteCorrectionsFile([]CorrectionRow{}, outputPath))
	info, err := os.Stat(outputPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestWriteCorrectionsFile_BadPath(t *testing.T) {
	err := WriteCorrectionsFile(nil, filepath.Join(t.TempDir(), "missing", "out.parquet"))
	assert.ErrorContains(t, err, "failed to create output file")
}
