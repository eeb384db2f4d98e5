// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/jobserp-explorer/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// StageReport summarizes one pipeline stage for the operator.
type StageReport struct {
	Stage      string
	Attempted  int
	Succeeded  int
	Skipped    int
	Failed     int
	OutputPath string
}

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintStageReport outputs the per-item counts of one finished stage.
func (p *Printer) PrintStageReport(report *StageReport) {
	if report == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Attempted: %d\n", report.Attempted))
	sb.WriteString(fmt.Sprintf("Succeeded: %d\n", report.Succeeded))
	if report.Skipped > 0 {
		sb.WriteString(fmt.Sprintf("Skipped:   %d (already done)\n", report.Skipped))
	}
	if report.Failed > 0 {
		sb.WriteString(fmt.Sprintf("Failed:    %d\n", report.Failed))
	}
	if report.OutputPath != "" {
		sb.WriteString(fmt.Sprintf("\nOutput: %s", report.OutputPath))
	}

	p.printBox(fmt.Sprintf("STAGE %s", strings.ToUpper(report.Stage)), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintQueries outputs the loaded job queries with their UIDs.
func (p *Printer) PrintQueries(queries []types.JobQuery) {
	if len(queries) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Loaded %d queries:\n\n", len(queries)))

	count := min(len(queries), maxItemsToShow)
	for i := 0; i < count; i++ {
		q := queries[i]
		title := q.JobTitle
		if len(title) > 30 {
			title = title[:27] + "..."
		}
		sb.WriteString(fmt.Sprintf("• %s @ %s\n", title, q.Company))
		sb.WriteString(fmt.Sprintf("  [%s]\n", q.QueryUID))
	}
	if len(queries) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more", len(queries)-maxItemsToShow))
	}

	p.printBox("JOB QUERIES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintCandidates outputs the selected scrape candidates grouped by label.
func (p *Printer) PrintCandidates(rows []types.ScoredResult) {
	if len(rows) == 0 {
		return
	}

	byLabel := make(map[types.Label]int)
	for _, row := range rows {
		byLabel[row.Label]++
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Selected %d candidates:\n\n", len(rows)))
	for _, label := range []types.Label{types.LabelATS, types.LabelEmployer, types.LabelUnknown} {
		if n := byLabel[label]; n > 0 {
			sb.WriteString(fmt.Sprintf("  %-10s %d\n", label, n))
		}
	}
	sb.WriteString("\n")

	count := min(len(rows), maxItemsToShow)
	for i := 0; i < count; i++ {
		row := rows[i]
		domain := row.Domain
		if len(domain) > 35 {
			domain = domain[:32] + "..."
		}
		sb.WriteString(fmt.Sprintf("• %s (%.1f) %s\n", row.Label, row.Score, domain))
	}
	if len(rows) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more", len(rows)-maxItemsToShow))
	}

	p.printBox("SCRAPE CANDIDATES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintJudgments outputs the final relevance judgments, best first.
func (p *Printer) PrintJudgments(judgments []types.FinalJudgment) {
	if len(judgments) == 0 {
		p.printBox("RELEVANCE JUDGMENTS", "No judgments produced")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Judged %d pages:\n\n", len(judgments)))

	count := min(len(judgments), maxItemsToShow)
	for i := 0; i < count; i++ {
		j := judgments[i]
		sb.WriteString(fmt.Sprintf("#%d  %s\n", i+1, j.PageUID))
		sb.WriteString(fmt.Sprintf("    Score: %.2f (%s)\n", j.RelevanceScore, j.Verdict))
		if i < count-1 {
			sb.WriteString("\n")
		}
	}
	if len(judgments) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more", len(judgments)-maxItemsToShow))
	}

	p.printBox("RELEVANCE JUDGMENTS", strings.TrimSuffix(sb.String(), "\n"))
}
