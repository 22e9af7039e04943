// Package parquet exports graded corrections to Parquet files using
// github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"

	"gradekey/internal/domain"
)

// CorrectionRow is one candidate's graded result, flattened for analytics.
type CorrectionRow struct {
	ExamID      string `parquet:"exam_id,snappy,dict"`
	CandidateID string `parquet:"candidate_id,snappy"`

	// KeyID and KeyVersion identify the grading key the grade was resolved with.
	KeyID      string `parquet:"key_id,snappy,dict"`
	KeyVersion int32  `parquet:"key_version,snappy"`

	TotalPoints     float64 `parquet:"total_points,snappy"`
	MaxPoints       float64 `parquet:"max_points,snappy"`
	PercentageScore float64 `parquet:"percentage_score,snappy"`
	Grade           string  `parquet:"grade,snappy,dict"`
	Status          string  `parquet:"status,snappy,dict"`
	TaskCount       int32   `parquet:"task_count,snappy"`

	CorrectedBy  *string    `parquet:"corrected_by,optional,snappy"`
	CorrectedAt  *time.Time `parquet:"corrected_at,optional,snappy"`
	LastModified time.Time  `parquet:"last_modified,snappy"`
}

// Rows flattens the corrections of exam, in the given order.
func Rows(exam domain.Exam, entries []domain.CorrectionEntry) []CorrectionRow {
	out := make([]CorrectionRow, 0, len(entries))
	for _, e := range entries {
		out = append(out, CorrectionRow{
			ExamID:          exam.ID,
			CandidateID:     e.CandidateID,
			KeyID:           exam.GradingKey.ID,
			KeyVersion:      int32(exam.GradingKey.Version),
			TotalPoints:     e.TotalPoints,
			MaxPoints:       exam.GradingKey.TotalPoints,
			PercentageScore: e.PercentageScore,
			Grade:           string(e.TotalGrade),
			Status:          string(e.Status),
			TaskCount:       int32(len(e.TaskScores)),
			CorrectedBy:     e.CorrectedBy,
			CorrectedAt:     e.CorrectedAt,
			LastModified:    e.LastModified,
		})
	}
	return out
}

// WriteCorrections writes rows to w as a single Parquet file.
func WriteCorrections(w io.Writer, rows []CorrectionRow) error {
	writer := parquet.NewGenericWriter[CorrectionRow](w)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return nil
}

// WriteCorrectionsFile writes rows to a new file at outputPath.
func WriteCorrectionsFile(rows []CorrectionRow, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := WriteCorrections(file, rows); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
