package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jonathan/jobserp-explorer/internal/identity"
	"github.com/jonathan/jobserp-explorer/internal/jsonl"
	"github.com/jonathan/jobserp-explorer/internal/observability"
	"github.com/jonathan/jobserp-explorer/internal/runs"
	"github.com/jonathan/jobserp-explorer/internal/types"
)

// jobPostingType is the page category worth keeping in the results dataset.
const jobPostingType = "Job Posting"

// Merge joins the pages the engine judged to be job postings with their
// scraped content into the results dataset. An existing results dataset is
// never overwritten unless Overwrite is set.
func (p *Pipeline) Merge(ctx context.Context) (*observability.StageReport, error) {
	logf, closeLog := p.logger(StageMerge)
	defer closeLog()

	// Refusing to overwrite is an operator error, not a run failure; the
	// run status is left alone.
	if !p.Opts.Overwrite && p.stageHasOutput(runs.DirResults, ".jsonl") {
		return nil, fmt.Errorf("results dataset already exists; pass --overwrite to replace it")
	}

	judgPath, err := p.Runs.LatestFile(runs.DirClassified, ".jsonl")
	if err != nil {
		return nil, p.fail(ctx, StageMerge, fmt.Errorf("no page judgments: run classify first"))
	}
	judgments, err := jsonl.Read[types.PageJudgment](judgPath)
	if err != nil {
		return nil, p.fail(ctx, StageMerge, err)
	}

	scrapedPath, err := p.Runs.LatestFile(runs.DirScraped, ".jsonl")
	if err != nil {
		return nil, p.fail(ctx, StageMerge, fmt.Errorf("no scraped dataset: run scrape first"))
	}
	pages, err := jsonl.Read[types.ScrapedPage](scrapedPath)
	if err != nil {
		return nil, p.fail(ctx, StageMerge, err)
	}

	byPage := make(map[string]types.ScrapedPage, len(pages))
	for _, page := range pages {
		byPage[identity.PageUID(page.SerpURL)] = page
	}

	var merged []types.MergedPosting
	for _, j := range judgments {
		if j.PageType != jobPostingType {
			continue
		}
		posting := types.MergedPosting{PageJudgment: j}
		if page, ok := byPage[j.PageUID]; ok {
			posting.SerpURL = page.SerpURL
			posting.Domain = page.Domain
			posting.ScrapedData = page.ScrapedData
		} else {
			logf.Printf("no scraped page for judgment %s", j.PageUID)
		}
		merged = append(merged, posting)
	}

	outPath := filepath.Join(p.Runs.Dir(runs.DirResults),
		fmt.Sprintf("merged_results_%s.jsonl", timestamp(time.Now())))
	if err := jsonl.Write(outPath, merged); err != nil {
		return nil, p.fail(ctx, StageMerge, err)
	}
	logf.Printf("merged %d job postings out of %d judgments to %s", len(merged), len(judgments), outPath)

	if err := p.setStatus(ctx, runs.StatusComplete); err != nil {
		return nil, p.fail(ctx, StageMerge, err)
	}
	if p.Mirror != nil {
		_ = p.Mirror.CompleteRun(ctx, p.Runs.RunUID(), string(runs.StatusComplete))
	}

	report := &observability.StageReport{
		Stage:      StageMerge,
		Attempted:  len(judgments),
		Succeeded:  len(merged),
		Skipped:    len(judgments) - len(merged),
		OutputPath: outPath,
	}
	if p.Opts.Verbose {
		p.printer.PrintStageReport(report)
	}
	p.emit(StageMerge, fmt.Sprintf("Merged %d job postings", len(merged)), nil)
	p.mirror(ctx, logf, runs.StatusComplete, StageMerge, outPath, len(merged), merged)
	return report, nil
}
