package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/jobserp-explorer/internal/identity"
	"github.com/jonathan/jobserp-explorer/internal/jsonl"
	"github.com/jonathan/jobserp-explorer/internal/observability"
	"github.com/jonathan/jobserp-explorer/internal/runs"
	"github.com/jonathan/jobserp-explorer/internal/types"
)

// Scrape fetches every candidate URL with a bounded worker pool. Fetches
// run in parallel; each worker writes only its own row index, so the output
// keeps the candidate order. Permanent failure records empty content and
// the batch continues.
func (p *Pipeline) Scrape(ctx context.Context) (*observability.StageReport, error) {
	logf, closeLog := p.logger(StageScrape)
	defer closeLog()

	if err := p.setStatus(ctx, runs.StatusScraping); err != nil {
		return nil, p.fail(ctx, StageScrape, err)
	}

	inPath, err := p.latestMatching(runs.DirScored, "serp_results")
	if err != nil {
		return nil, p.fail(ctx, StageScrape, fmt.Errorf("no candidate dataset: run score first"))
	}
	rows, err := jsonl.Read[types.ScoredResult](inPath)
	if err != nil {
		return nil, p.fail(ctx, StageScrape, err)
	}
	if len(rows) == 0 {
		return nil, p.fail(ctx, StageScrape, fmt.Errorf("candidate dataset %s holds no rows", inPath))
	}

	pages := make([]types.ScrapedPage, len(rows))
	var mu sync.Mutex
	failed := 0

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.Opts.ScrapeWorkers)
	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			text, err := p.Scraper.Page(gCtx, row.SerpURL)
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				logf.Printf("scrape failed for %s: %v", row.SerpURL, err)
				text = ""
			}
			pages[i] = types.ScrapedPage{
				JobIndex:     row.JobIndex,
				JobTitle:     row.JobTitle,
				Company:      row.Company,
				Label:        row.Label,
				Score:        row.Score,
				Domain:       row.Domain,
				SerpURL:      row.SerpURL,
				SerpTitle:    row.SerpTitle,
				GoogleSearch: row.GoogleSearch,
				ScrapedData:  text,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, p.fail(ctx, StageScrape, err)
	}

	outPath := filepath.Join(p.Runs.Dir(runs.DirScraped),
		fmt.Sprintf("scraped_%s.jsonl", timestamp(time.Now())))
	if err := jsonl.Write(outPath, pages); err != nil {
		return nil, p.fail(ctx, StageScrape, err)
	}
	logf.Printf("scraped %d pages (%d failed) to %s", len(pages), failed, outPath)

	report := &observability.StageReport{
		Stage:      StageScrape,
		Attempted:  len(rows),
		Succeeded:  len(rows) - failed,
		Failed:     failed,
		OutputPath: outPath,
	}
	if p.Opts.Verbose {
		p.printer.PrintStageReport(report)
	}
	p.emit(StageScrape, fmt.Sprintf("Scraped %d pages (%d failed)", len(rows)-failed, failed), nil)
	p.mirror(ctx, logf, runs.StatusScraping, StageScrape, outPath, len(pages), nil)
	return report, nil
}

// ExportFinal joins scraped content onto classification-shaped records to
// produce the relevance-scoring input.
func (p *Pipeline) ExportFinal(ctx context.Context) (*observability.StageReport, error) {
	logf, closeLog := p.logger(StageExportFinal)
	defer closeLog()

	inPath, err := p.Runs.LatestFile(runs.DirScraped, ".jsonl")
	if err != nil {
		return nil, p.fail(ctx, StageExportFinal, fmt.Errorf("no scraped dataset: run scrape first"))
	}
	pages, err := jsonl.Read[types.ScrapedPage](inPath)
	if err != nil {
		return nil, p.fail(ctx, StageExportFinal, err)
	}

	inputs := make([]types.ClassificationInput, 0, len(pages))
	for _, page := range pages {
		inputs = append(inputs, types.ClassificationInput{
			JobIndex:    page.JobIndex,
			QueryUID:    identity.QueryUID(page.JobTitle, page.Company),
			JobTitle:    page.JobTitle,
			Company:     page.Company,
			PageUID:     identity.PageUID(page.SerpURL),
			SerpURL:     page.SerpURL,
			ScrapedData: page.ScrapedData,
		})
	}

	outPath := filepath.Join(p.Runs.Dir(runs.DirFinalInput),
		fmt.Sprintf("final_input_%s.jsonl", timestamp(time.Now())))
	if err := jsonl.Write(outPath, inputs); err != nil {
		return nil, p.fail(ctx, StageExportFinal, err)
	}
	logf.Printf("exported %d final-scoring inputs to %s", len(inputs), outPath)

	report := &observability.StageReport{
		Stage:      StageExportFinal,
		Attempted:  len(pages),
		Succeeded:  len(inputs),
		OutputPath: outPath,
	}
	p.emit(StageExportFinal, fmt.Sprintf("Exported %d final-scoring inputs", len(inputs)), nil)
	p.mirror(ctx, logf, runs.StatusScraping, StageExportFinal, outPath, len(inputs), nil)
	return report, nil
}
