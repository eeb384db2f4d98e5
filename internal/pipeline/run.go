package pipeline

import (
	"context"
	"fmt"

	"github.com/jonathan/jobserp-explorer/internal/runs"
)

// RunInput selects where the run's queries come from: an existing CSV or a
// job-board search.
type RunInput struct {
	QueryCSV      string
	RemotiveQuery string
	Limit         int
}

// Run sequences every stage from queries to the merged results dataset.
// Stages whose output already exists are skipped, so a failed run resumes
// from its last checkpoint when invoked again.
func (p *Pipeline) Run(ctx context.Context, in RunInput) error {
	if err := p.Runs.EnsureDirs(); err != nil {
		return fmt.Errorf("failed to prepare run directory: %w", err)
	}

	if !p.stageHasOutput(runs.DirQuery, ".csv") {
		switch {
		case in.QueryCSV != "":
			if _, err := p.ImportQueries(in.QueryCSV); err != nil {
				return p.fail(ctx, StageFetchJobs, err)
			}
		case in.RemotiveQuery != "":
			if _, err := p.FetchJobs(ctx, in.RemotiveQuery, in.Limit); err != nil {
				return err
			}
		default:
			return fmt.Errorf("no queries: pass a query CSV or a job-board search query")
		}
	}

	// The ledger makes fetch-serps idempotent on its own; invoking it on a
	// resumed run only fetches what is still missing.
	if _, err := p.FetchSerps(ctx); err != nil {
		return err
	}

	stages := []struct {
		name   string
		outDir string
		invoke func(context.Context) error
	}{
		{StageScore, runs.DirScored, func(ctx context.Context) error { _, err := p.Score(ctx); return err }},
		{StageExportClass, runs.DirClassInput, func(ctx context.Context) error { _, err := p.ExportClassify(ctx); return err }},
		{StageClassify, runs.DirClassified, func(ctx context.Context) error { _, err := p.Classify(ctx); return err }},
		{StageScrape, runs.DirScraped, func(ctx context.Context) error { _, err := p.Scrape(ctx); return err }},
		{StageExportFinal, runs.DirFinalInput, func(ctx context.Context) error { _, err := p.ExportFinal(ctx); return err }},
		{StageFinalScore, runs.DirFinalScored, func(ctx context.Context) error { _, err := p.FinalScore(ctx); return err }},
		{StageMerge, runs.DirResults, func(ctx context.Context) error { _, err := p.Merge(ctx); return err }},
	}

	for _, s := range stages {
		if p.stageHasOutput(s.outDir, ".jsonl") {
			p.emit(s.name, "Output already present, skipping", nil)
			continue
		}
		if err := s.invoke(ctx); err != nil {
			return err
		}
	}

	return nil
}
