package keys

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// NoChangesRecorded is the report for a key without audit entries.
const NoChangesRecorded = "No changes recorded"

// ExportChangeHistory renders the audit trail of keyID as plain text.
func (e *Engine) ExportChangeHistory(ctx context.Context, keyID string) (string, error) {
	hist, err := e.audit.History(ctx, keyID)
	if err != nil {
		return "", fmt.Errorf("load history of grading key %s: %w", keyID, err)
	}
	if len(hist) == 0 {
		return NoChangesRecorded, nil
	}

	var sb strings.Builder
	title := fmt.Sprintf("Change history for grading key %s (%d changes)", keyID, len(hist))
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat("=", len(title)) + "\n")
	for i, rec := range hist {
		author, reason := "unknown", "-"
		if rec.ChangedBy != nil && *rec.ChangedBy != "" {
			author = *rec.ChangedBy
		}
		if rec.Reason != nil && *rec.Reason != "" {
			reason = *rec.Reason
		}
		fmt.Fprintf(&sb, "\n#%d %s (version %d -> %d)\n", i+1, rec.Timestamp.UTC().Format(time.RFC3339), rec.PreviousKey.Version, rec.NewKey.Version)
		fmt.Fprintf(&sb, "  Changed by: %s\n", author)
		fmt.Fprintf(&sb, "  Reason:     %s\n", reason)
		diff := e.CompareGradingKeys(rec.PreviousKey, rec.NewKey)
		if diff.IsSame {
			sb.WriteString("  No differences\n")
			continue
		}
		for _, c := range diff.Changes {
			fmt.Fprintf(&sb, "  - %s\n", c)
		}
	}
	return sb.String(), nil
}
