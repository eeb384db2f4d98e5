package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/jonathan/jobserp-explorer/internal/candidates"
	"github.com/jonathan/jobserp-explorer/internal/classify"
	"github.com/jonathan/jobserp-explorer/internal/jsonl"
	"github.com/jonathan/jobserp-explorer/internal/observability"
	"github.com/jonathan/jobserp-explorer/internal/runs"
	"github.com/jonathan/jobserp-explorer/internal/types"
)

// Score classifies every row of the latest batch dataset against the
// domain taxonomy, writes the full scored export for auditing and the
// filtered candidate set for the downstream stages, and records the label
// distribution sidecar.
func (p *Pipeline) Score(ctx context.Context) (*observability.StageReport, error) {
	logf, closeLog := p.logger(StageScore)
	defer closeLog()

	if err := p.setStatus(ctx, runs.StatusScoring); err != nil {
		return nil, p.fail(ctx, StageScore, err)
	}

	inPath, err := p.Runs.LatestFile(runs.DirExpanded, ".jsonl")
	if err != nil {
		return nil, p.fail(ctx, StageScore, fmt.Errorf("no batch dataset: run fetch-serps first"))
	}
	rows, skipped, err := jsonl.ReadLenient[types.SerpResult](inPath)
	if err != nil {
		return nil, p.fail(ctx, StageScore, err)
	}
	if skipped > 0 {
		logf.Printf("quarantined %d malformed rows in %s", skipped, inPath)
	}
	if len(rows) == 0 {
		return nil, p.fail(ctx, StageScore, fmt.Errorf("batch dataset %s holds no rows", inPath))
	}

	scored := make([]types.ScoredResult, 0, len(rows))
	for _, row := range rows {
		row.Domain = classify.DomainOf(row.SerpURL)
		label, score := classify.LabelAndScore(row.Domain, row.Company)
		scored = append(scored, types.ScoredResult{
			SerpResult:   row,
			Label:        label,
			Score:        score,
			GoogleSearch: googleSearchURL(row.JobTitle, row.Company),
		})
	}

	ts := timestamp(time.Now())
	fullPath := filepath.Join(p.Runs.Dir(runs.DirScored), fmt.Sprintf("serp_scored_full_%s.jsonl", ts))
	if err := jsonl.Write(fullPath, scored); err != nil {
		return nil, p.fail(ctx, StageScore, err)
	}

	perLabel := p.Opts.PerLabel
	if perLabel <= 0 {
		perLabel = candidates.DefaultPerLabel
	}
	unknown := p.Opts.UnknownQuota
	if unknown <= 0 {
		unknown = candidates.DefaultUnknown
	}
	filtered := candidates.FilterTop(scored, perLabel, unknown)
	if p.Opts.Verbose {
		p.printer.PrintCandidates(filtered)
	}

	outPath := filepath.Join(p.Runs.Dir(runs.DirScored), fmt.Sprintf("serp_results_%s.jsonl", ts))
	if err := jsonl.Write(outPath, filtered); err != nil {
		return nil, p.fail(ctx, StageScore, err)
	}
	logf.Printf("scored %d rows, selected %d candidates", len(scored), len(filtered))

	if _, err := p.Runs.WriteSidecar(fmt.Sprintf("score_%s.json", ts), scoreSidecar(scored, filtered, fullPath, outPath)); err != nil {
		logf.Printf("warning: failed to write sidecar: %v", err)
	}

	report := &observability.StageReport{
		Stage:      StageScore,
		Attempted:  len(rows),
		Succeeded:  len(filtered),
		Skipped:    skipped,
		OutputPath: outPath,
	}
	if p.Opts.Verbose {
		p.printer.PrintStageReport(report)
	}
	p.emit(StageScore, fmt.Sprintf("Scored %d rows, %d candidates selected", len(scored), len(filtered)), nil)
	p.mirror(ctx, logf, runs.StatusScoring, StageScore, outPath, len(filtered), filtered)
	return report, nil
}

// ExportClassify flattens the candidate rows into the classification-input
// dataset consumed by the page-categorization flow.
func (p *Pipeline) ExportClassify(ctx context.Context) (*observability.StageReport, error) {
	logf, closeLog := p.logger(StageExportClass)
	defer closeLog()

	inPath, err := p.latestMatching(runs.DirScored, "serp_results")
	if err != nil {
		return nil, p.fail(ctx, StageExportClass, fmt.Errorf("no candidate dataset: run score first"))
	}
	rows, err := jsonl.Read[types.ScoredResult](inPath)
	if err != nil {
		return nil, p.fail(ctx, StageExportClass, err)
	}

	inputs := make([]types.ClassificationInput, 0, len(rows))
	for _, row := range rows {
		inputs = append(inputs, types.ClassificationInput{
			JobIndex: row.JobIndex,
			QueryUID: row.QueryUID,
			JobTitle: row.JobTitle,
			Company:  row.Company,
			PageUID:  row.PageUID,
			SerpURL:  row.SerpURL,
		})
	}

	outPath := filepath.Join(p.Runs.Dir(runs.DirClassInput),
		fmt.Sprintf("serp_class_input_%s.jsonl", timestamp(time.Now())))
	if err := jsonl.Write(outPath, inputs); err != nil {
		return nil, p.fail(ctx, StageExportClass, err)
	}
	logf.Printf("exported %d classification inputs to %s", len(inputs), outPath)

	report := &observability.StageReport{
		Stage:      StageExportClass,
		Attempted:  len(rows),
		Succeeded:  len(inputs),
		OutputPath: outPath,
	}
	p.emit(StageExportClass, fmt.Sprintf("Exported %d classification inputs", len(inputs)), nil)
	p.mirror(ctx, logf, runs.StatusScoring, StageExportClass, outPath, len(inputs), nil)
	return report, nil
}

// googleSearchURL is the pivot link kept on every candidate row so a
// reviewer can re-run the search by hand.
func googleSearchURL(jobTitle, company string) string {
	q := url.QueryEscape(jobTitle + " " + company)
	return "https://www.google.com/search?q=" + q
}

func scoreSidecar(scored, filtered []types.ScoredResult, fullPath, resultsPath string) map[string]any {
	dist := map[string]int{}
	queries := map[string]struct{}{}
	pages := map[string]struct{}{}
	for _, row := range scored {
		dist[string(row.Label)]++
		queries[row.QueryUID] = struct{}{}
		pages[row.PageUID] = struct{}{}
	}
	return map[string]any{
		"n_rows":             len(scored),
		"n_candidates":       len(filtered),
		"n_unique_queries":   len(queries),
		"n_unique_pages":     len(pages),
		"label_distribution": dist,
		"scored_full":        fullPath,
		"results":            resultsPath,
	}
}
