package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrlokans/shelfsync/internal/apply"
	"github.com/mrlokans/shelfsync/internal/plan"
)

// Writer persists plan/report artifacts for review and audit.
type Writer struct {
	ReportDir string
}

func NewWriter(reportDir string) *Writer {
	return &Writer{ReportDir: reportDir}
}

// SaveJSON saves the apply report as JSON under a UUID4 filename and returns
// the full artifact path. Works for dry-run previews and post-apply audits
// alike; it never touches any destination.
func (w *Writer) SaveJSON(report *apply.Report) (string, error) {
	if err := w.ensureReportDir(); err != nil {
		return "", fmt.Errorf("failed to ensure report directory: %w", err)
	}

	filename := fmt.Sprintf("%s.json", uuid.New().String())
	path := filepath.Join(w.ReportDir, filename)

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return path, nil
}

// SaveUnmatchedReport writes the review report for unmatched books and
// returns its path, or "" when every book with collections matched.
func (w *Writer) SaveUnmatchedReport(p *plan.Plan) (string, error) {
	content := UnmatchedReport(p)
	if content == "" {
		return "", nil
	}

	if err := w.ensureReportDir(); err != nil {
		return "", fmt.Errorf("failed to ensure report directory: %w", err)
	}

	filename := fmt.Sprintf("unmatched_books_%s.txt", time.Now().Format("20060102_150405"))
	path := filepath.Join(w.ReportDir, filename)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write unmatched report: %w", err)
	}

	return path, nil
}

func (w *Writer) ensureReportDir() error {
	if _, err := os.Stat(w.ReportDir); os.IsNotExist(err) {
		if err := os.MkdirAll(w.ReportDir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	return nil
}

// Summary renders the human-readable run summary.
func Summary(report *apply.Report) string {
	p := report.Plan

	var b strings.Builder
	b.WriteString("Shelf Sync Summary\n")
	b.WriteString("==================\n\n")
	fmt.Fprintf(&b, "Mode: %s\n", report.Mode)
	fmt.Fprintf(&b, "Books matched: %d\n", len(p.Actions))
	fmt.Fprintf(&b, "Books unmatched: %d\n", len(p.Unmatched))
	fmt.Fprintf(&b, "Conflicts needing review: %d\n", len(p.Conflicts))

	if libraries := p.Libraries(); len(libraries) > 0 {
		fmt.Fprintf(&b, "Libraries touched: %s\n", strings.Join(libraries, ", "))
	}
	if failed := report.Failed(); len(failed) > 0 {
		fmt.Fprintf(&b, "Libraries failed: %s\n", strings.Join(failed, ", "))
	}

	if len(p.Conflicts) > 0 {
		b.WriteString("\nConflicts:\n")
		for _, conflict := range p.Conflicts {
			fmt.Fprintf(&b, "  - %q by %s (%s)\n", conflict.Title, conflict.Author, conflict.Kind)
			for _, candidate := range conflict.Candidates {
				fmt.Fprintf(&b, "      candidate: %s entry %d (%s)\n", candidate.Library, candidate.EntryID, candidate.Confidence)
			}
			for _, mismatch := range conflict.Mismatches {
				fmt.Fprintf(&b, "      %s: existing %q vs proposed %q\n", mismatch.Field, mismatch.Existing, mismatch.Proposed)
			}
		}
	}

	return b.String()
}

// UnmatchedReport renders the review report for unmatched books, keeping
// books that carry collections (the ones that were expected to match) apart
// from the rest. Returns "" when there is nothing to investigate.
func UnmatchedReport(p *plan.Plan) string {
	var withCollections []plan.Unmatched
	for _, unmatched := range p.Unmatched {
		if unmatched.HasCollections {
			withCollections = append(withCollections, unmatched)
		}
	}
	if len(withCollections) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Books with Collections - No Match Found\n")
	b.WriteString("=======================================\n")
	fmt.Fprintf(&b, "Generated: %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Books with collections but no match: %d\n", len(withCollections))
	fmt.Fprintf(&b, "Total unmatched books: %d\n", len(p.Unmatched))
	fmt.Fprintf(&b, "Books without collections (expected): %d\n\n", len(p.Unmatched)-len(withCollections))

	b.WriteString("These books have collections on the device but could not be matched to any library.\n")
	b.WriteString("This usually indicates title/author differences or missing books in the libraries.\n\n")

	for i, unmatched := range withCollections {
		fmt.Fprintf(&b, "%3d. Title: %s\n", i+1, unmatched.Title)
		fmt.Fprintf(&b, "     Author: %s\n", unmatched.Author)
		fmt.Fprintf(&b, "     Collections: %s\n", strings.Join(unmatched.Collections, ", "))
		fmt.Fprintf(&b, "     Reason: %s\n", unmatched.Reason)
		b.WriteString(strings.Repeat("-", 70) + "\n")
	}

	return b.String()
}
