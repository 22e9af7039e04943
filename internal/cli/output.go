package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/term"

	"gradekey/internal/domain"
	"gradekey/internal/services/keys"
)

// useColors resolves --color. "auto" colors only when stdout is a terminal.
func useColors() bool {
	switch strings.ToLower(vp.GetString("color")) {
	case "yes", "true", "1":
		return true
	case "no", "false", "0":
		return false
	default:
		return term.IsTerminal(int(os.Stdout.Fd()))
	}
}

// paint returns a formatter for attr, or fmt.Sprint when colors are off.
func paint(enabled bool, attr color.Attribute) func(...any) string {
	if !enabled {
		return fmt.Sprint
	}
	c := color.New(attr)
	c.EnableColor()
	return c.SprintFunc()
}

// reasonWidth is the room left for the free-text column of the history table.
func reasonWidth() int {
	termWidth := vp.GetInt("width")
	if termWidth <= 0 {
		detected, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detected <= 0 {
			termWidth = 80
		} else {
			termWidth = detected
		}
	}
	// #, timestamp, versions and author with borders and padding
	available := termWidth - 60
	return min(max(available, 15), 80)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

// writeImpactTable lists the grade changes of res. Rows are marked better or
// worse by the rank of the grades in key, first boundary being the best.
func writeImpactTable(w io.Writer, res keys.BatchResult, key domain.GradingKey, colors bool) error {
	rank := make(map[domain.Grade]int, len(key.GradeBoundaries))
	for i, b := range key.GradeBoundaries {
		if _, seen := rank[b.Grade]; !seen {
			rank[b.Grade] = i
		}
	}
	red := paint(colors, color.FgRed)
	green := paint(colors, color.FgGreen)
	yellow := paint(colors, color.FgYellow)

	if res.ChangeCount == 0 {
		_, err := fmt.Fprintln(w, "No grades change")
		return err
	}

	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()
	table.Header([]string{"Candidate", "Correction", "Old", "New", "Change"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	var better, worse int
	for _, c := range res.AffectedGrades {
		oldRank, okOld := rank[c.OldGrade]
		newRank, okNew := rank[c.NewGrade]
		var change string
		switch {
		case !okOld || !okNew:
			change = yellow("changed")
		case newRank < oldRank:
			better++
			change = green("better ▲")
		default:
			worse++
			change = red("worse ▼")
		}
		data = append(data, []string{c.CandidateID, c.CorrectionID, string(c.OldGrade), string(c.NewGrade), change})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d grades change (%d better, %d worse)\n", res.ChangeCount, better, worse)
	return err
}

// writeHistoryTable renders one row per audit record with the boundary diff
// summarized as a change count.
func writeHistoryTable(w io.Writer, engine *keys.Engine, hist []domain.ChangeRecord, width int) error {
	if len(hist) == 0 {
		_, err := fmt.Fprintln(w, keys.NoChangesRecorded)
		return err
	}
	table := tablewriter.NewWriter(w)
	defer func() { _ = table.Close() }()
	table.Header([]string{"#", "Changed At", "Version", "Changed By", "Changes", "Reason"})

	var data [][]string
	for i, rec := range hist {
		author, reason := "unknown", "-"
		if rec.ChangedBy != nil && *rec.ChangedBy != "" {
			author = *rec.ChangedBy
		}
		if rec.Reason != nil && *rec.Reason != "" {
			reason = *rec.Reason
		}
		diff := engine.CompareGradingKeys(rec.PreviousKey, rec.NewKey)
		data = append(data, []string{
			strconv.Itoa(i + 1),
			rec.Timestamp.UTC().Format(time.RFC3339),
			fmt.Sprintf("%d → %d", rec.PreviousKey.Version, rec.NewKey.Version),
			author,
			strconv.Itoa(len(diff.Changes)),
			truncate(reason, width),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
