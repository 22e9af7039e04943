package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	pqexport "gradekey/internal/adapters/parquet"
	"gradekey/internal/domain"
)

var exportCmd = &cobra.Command{
	Use:     "export <examId>",
	Short:   "Write the graded corrections of an exam to a Parquet file",
	Args:    cobra.ExactArgs(1),
	PreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		examID := args[0]
		path, _ := cmd.Flags().GetString("output")
		if path == "" {
			path = examID + ".parquet"
		}
		be, err := openBackend(rootCtx, cfg)
		if err != nil {
			return err
		}
		defer be.close()

		exam, found, err := be.exams.FindByID(rootCtx, examID)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("exam %s: %w", examID, domain.ErrNotFound)
		}
		entries, err := be.corrections.ListByExam(rootCtx, examID)
		if err != nil {
			return err
		}
		if err := pqexport.WriteCorrectionsFile(pqexport.Rows(exam, entries), path); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d corrections to %s\n", len(entries), path)
		return err
	},
}
