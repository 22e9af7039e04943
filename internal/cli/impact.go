package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"gradekey/internal/domain"
)

var impactCmd = &cobra.Command{
	Use:   "impact <examId>",
	Short: "Preview which grades change under new boundaries",
	Long: `Resolve every stored correction of an exam against the current and the
proposed grade boundaries and list the candidates whose grade changes.

The boundaries file holds either a JSON array of grade boundaries or an object
with a "gradeBoundaries" array. With --apply the new key is stored, the change
is recorded in the key history and the exam is regraded.`,
	Args:    cobra.ExactArgs(1),
	PreRunE: loadConfig,
	RunE:    runImpact,
}

func runImpact(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	path, _ := flags.GetString("boundaries")
	apply, _ := flags.GetBool("apply")
	reason, _ := flags.GetString("reason")
	changedBy, _ := flags.GetString("changed-by")

	bs, err := readBoundaries(path)
	if err != nil {
		return err
	}
	be, err := openBackend(rootCtx, cfg)
	if err != nil {
		return err
	}
	defer be.close()
	engine, svc := newServices(be, cfg)

	exam, found, err := be.exams.FindByID(rootCtx, args[0])
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("exam %s: %w", args[0], domain.ErrNotFound)
	}
	proposed := exam.GradingKey.Clone()
	proposed.GradeBoundaries = bs
	if v := engine.ValidateGradingKey(proposed); !v.Valid {
		return fmt.Errorf("invalid grade boundaries: %s", strings.Join(v.Errors, "; "))
	}

	entries, err := be.corrections.ListByExam(rootCtx, exam.ID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	impact := engine.RecalculateGradesForBatch(entries, exam.GradingKey, proposed)
	if err := writeImpactTable(out, impact, proposed, useColors()); err != nil {
		return err
	}
	if !apply {
		return nil
	}

	updated, err := engine.ModifyExamGradingKey(rootCtx, be.exams, exam.ID, exam.GradingKey, bs, optional(reason), optional(changedBy))
	if err != nil {
		return err
	}
	n, err := svc.Regrade(rootCtx, exam.ID)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "grading key %s is now version %d, %d corrections regraded\n", updated.ID, updated.Version, n)
	return err
}

// readBoundaries loads a JSON array of boundaries, or an object carrying one
// under "gradeBoundaries".
func readBoundaries(path string) ([]domain.GradeBoundary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read boundaries: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	var bs []domain.GradeBoundary
	if bytes.HasPrefix(raw, []byte("{")) {
		var wrapped struct {
			GradeBoundaries []domain.GradeBoundary `json:"gradeBoundaries"`
		}
		err = json.Unmarshal(raw, &wrapped)
		bs = wrapped.GradeBoundaries
	} else {
		err = json.Unmarshal(raw, &bs)
	}
	if err != nil {
		return nil, fmt.Errorf("parse boundaries %s: %w", path, err)
	}
	if len(bs) == 0 {
		return nil, fmt.Errorf("no grade boundaries in %s", path)
	}
	return bs, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
