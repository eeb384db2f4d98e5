package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jonathan/jobserp-explorer/internal/identity"
	"github.com/jonathan/jobserp-explorer/internal/jsonl"
	"github.com/jonathan/jobserp-explorer/internal/observability"
	"github.com/jonathan/jobserp-explorer/internal/remotive"
	"github.com/jonathan/jobserp-explorer/internal/runs"
	"github.com/jonathan/jobserp-explorer/internal/tracker"
	"github.com/jonathan/jobserp-explorer/internal/types"
)

// queryHeader is the column layout of the run's query CSV.
var queryHeader = []string{"job_title", "company", "location"}

// doneFile is the append-only ledger of fetched query UIDs.
const doneFile = "done_queries.csv"

// FetchJobs queries the job listing API and writes the run's query CSV.
func (p *Pipeline) FetchJobs(ctx context.Context, query string, limit int) (*observability.StageReport, error) {
	logf, closeLog := p.logger(StageFetchJobs)
	defer closeLog()

	if err := p.Runs.EnsureDirs(); err != nil {
		return nil, p.fail(ctx, StageFetchJobs, err)
	}
	if err := p.setStatus(ctx, runs.StatusFetching); err != nil {
		return nil, p.fail(ctx, StageFetchJobs, err)
	}

	logf.Printf("fetching job listings for query %q (limit %d)", query, limit)
	jobs, err := p.Jobs.FetchJobs(ctx, query, limit)
	if err != nil {
		return nil, p.fail(ctx, StageFetchJobs, err)
	}
	if len(jobs) == 0 {
		return nil, p.fail(ctx, StageFetchJobs, fmt.Errorf("no job listings for query %q", query))
	}

	outPath := filepath.Join(p.Runs.Dir(runs.DirQuery), "queries.csv")
	if err := writeQueryCSV(outPath, jobs); err != nil {
		return nil, p.fail(ctx, StageFetchJobs, err)
	}
	logf.Printf("wrote %d queries to %s", len(jobs), outPath)

	if err := p.Runs.SaveMetadata(map[string]any{
		"run_uid":    p.Runs.RunUID(),
		"query":      query,
		"input_csv":  outPath,
		"started_at": time.Now().Format(time.RFC3339),
	}, false); err != nil {
		return nil, p.fail(ctx, StageFetchJobs, err)
	}

	report := &observability.StageReport{
		Stage:      StageFetchJobs,
		Attempted:  len(jobs),
		Succeeded:  len(jobs),
		OutputPath: outPath,
	}
	p.emit(StageFetchJobs, fmt.Sprintf("Fetched %d job listings", len(jobs)), nil)
	p.mirror(ctx, logf, runs.StatusFetching, StageFetchJobs, outPath, len(jobs), jobs)
	return report, nil
}

// ImportQueries copies an externally prepared query CSV into the run so the
// remaining stages find it through normal discovery.
func (p *Pipeline) ImportQueries(inputPath string) (string, error) {
	if err := p.Runs.EnsureDirs(); err != nil {
		return "", err
	}
	src, err := os.Open(inputPath)
	if err != nil {
		return "", fmt.Errorf("failed to open query CSV %s: %w", inputPath, err)
	}
	defer func() { _ = src.Close() }()

	outPath := filepath.Join(p.Runs.Dir(runs.DirQuery), filepath.Base(inputPath))
	dst, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to copy query CSV: %w", err)
	}
	if err := p.Runs.SaveMetadata(map[string]any{
		"run_uid":    p.Runs.RunUID(),
		"input_csv":  outPath,
		"started_at": time.Now().Format(time.RFC3339),
	}, false); err != nil {
		return "", err
	}
	return outPath, nil
}

// FetchSerps runs the SERP provider over every query row not yet in the
// done ledger. Each fetched query lands in its own per-query dataset and is
// ledgered immediately; a provider failure leaves the query un-ledgered for
// the next invocation. The batch dataset is rebuilt from all per-query
// files so resumed runs still produce a complete batch.
func (p *Pipeline) FetchSerps(ctx context.Context) (*observability.StageReport, error) {
	logf, closeLog := p.logger(StageFetchSerps)
	defer closeLog()

	if err := p.Runs.EnsureDirs(); err != nil {
		return nil, p.fail(ctx, StageFetchSerps, err)
	}
	if err := p.setStatus(ctx, runs.StatusFetching); err != nil {
		return nil, p.fail(ctx, StageFetchSerps, err)
	}

	queries, err := p.loadQueries()
	if err != nil {
		return nil, p.fail(ctx, StageFetchSerps, err)
	}
	if p.Opts.Verbose {
		p.printer.PrintQueries(queries)
	}

	ledger, err := tracker.Load(filepath.Join(p.Runs.Dir(runs.DirMetadata), doneFile))
	if err != nil {
		return nil, p.fail(ctx, StageFetchSerps, err)
	}

	report := &observability.StageReport{Stage: StageFetchSerps, Attempted: len(queries)}
	for i, q := range queries {
		if ledger.IsDone(q.QueryUID) {
			logf.Printf("skipping %s (%s @ %s): already fetched", q.QueryUID, q.JobTitle, q.Company)
			report.Skipped++
			continue
		}

		hits, err := p.Search.Search(ctx, q.JobTitle, q.Company, p.Opts.SerpLimit)
		if err != nil {
			logf.Printf("search failed for %s @ %s: %v", q.JobTitle, q.Company, err)
			report.Failed++
			continue
		}

		rows := make([]types.SerpResult, 0, len(hits))
		for _, hit := range hits {
			row := types.SerpResult{
				QueryUID:        q.QueryUID,
				PageUID:         identity.PageUID(hit.URL),
				JobIndex:        i,
				JobTitle:        q.JobTitle,
				Company:         q.Company,
				SerpTitle:       html.UnescapeString(hit.Title),
				SerpDescription: html.UnescapeString(hit.Description),
				SerpURL:         hit.URL,
			}
			if err := types.ValidateRecord(row); err != nil {
				logf.Printf("quarantined malformed hit for %s: %v", q.QueryUID, err)
				continue
			}
			rows = append(rows, row)
		}

		perQuery := filepath.Join(p.Runs.Dir(runs.DirSerp), fmt.Sprintf("serp_%s.jsonl", q.QueryUID))
		if err := jsonl.Write(perQuery, rows); err != nil {
			return nil, p.fail(ctx, StageFetchSerps, err)
		}
		if err := ledger.MarkDone(tracker.Entry{
			QueryUID: q.QueryUID,
			JobTitle: q.JobTitle,
			Company:  q.Company,
			DoneAt:   time.Now(),
		}); err != nil {
			return nil, p.fail(ctx, StageFetchSerps, err)
		}
		logf.Printf("fetched %d hits for %s @ %s", len(rows), q.JobTitle, q.Company)
		report.Succeeded++
	}

	batch, err := p.collectSerpBatch(queries)
	if err != nil {
		return nil, p.fail(ctx, StageFetchSerps, err)
	}
	outPath := filepath.Join(p.Runs.Dir(runs.DirExpanded),
		fmt.Sprintf("serp_expanded_%s.jsonl", timestamp(time.Now())))
	if err := jsonl.Write(outPath, batch); err != nil {
		return nil, p.fail(ctx, StageFetchSerps, err)
	}
	report.OutputPath = outPath
	logf.Printf("wrote batch dataset with %d rows to %s", len(batch), outPath)

	if p.Opts.Verbose {
		p.printer.PrintStageReport(report)
	}
	p.emit(StageFetchSerps, fmt.Sprintf("Fetched SERPs for %d queries (%d skipped)", report.Succeeded, report.Skipped), nil)
	p.mirror(ctx, logf, runs.StatusFetching, StageFetchSerps, outPath, len(batch), nil)
	return report, nil
}

// loadQueries reads the run's query CSV and derives the query UIDs. Row
// order defines job_index.
func (p *Pipeline) loadQueries() ([]types.JobQuery, error) {
	path, err := p.Runs.LatestFile(runs.DirQuery, ".csv")
	if err != nil {
		return nil, fmt.Errorf("no query CSV in %s: run fetch-jobs or import one first", runs.DirQuery)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open query CSV %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse query CSV %s: %w", path, err)
	}

	var queries []types.JobQuery
	for i, rec := range records {
		if i == 0 && len(rec) > 0 && rec[0] == queryHeader[0] {
			continue
		}
		if len(rec) < 2 || rec[0] == "" || rec[1] == "" {
			continue
		}
		q := types.JobQuery{
			JobTitle: rec[0],
			Company:  rec[1],
			QueryUID: identity.QueryUID(rec[0], rec[1]),
		}
		if len(rec) > 2 {
			q.Location = rec[2]
		}
		queries = append(queries, q)
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("query CSV %s holds no usable rows", path)
	}
	return queries, nil
}

// collectSerpBatch unions the per-query datasets in query order.
func (p *Pipeline) collectSerpBatch(queries []types.JobQuery) ([]types.SerpResult, error) {
	var batch []types.SerpResult
	for _, q := range queries {
		path := filepath.Join(p.Runs.Dir(runs.DirSerp), fmt.Sprintf("serp_%s.jsonl", q.QueryUID))
		rows, err := jsonl.Read[types.SerpResult](path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		batch = append(batch, rows...)
	}
	return batch, nil
}

func writeQueryCSV(path string, jobs []remotive.Job) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create query directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(queryHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, job := range jobs {
		if err := w.Write([]string{job.Title, job.Company, job.Location}); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush query CSV: %w", err)
	}
	return f.Sync()
}
