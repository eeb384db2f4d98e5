package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/jobserp-explorer/internal/engine"
	"github.com/jonathan/jobserp-explorer/internal/identity"
	"github.com/jonathan/jobserp-explorer/internal/jsonl"
	"github.com/jonathan/jobserp-explorer/internal/runs"
	"github.com/jonathan/jobserp-explorer/internal/scrape"
	"github.com/jonathan/jobserp-explorer/internal/search"
	"github.com/jonathan/jobserp-explorer/internal/types"
)

// fakeProvider answers a fixed set of hits per query and counts calls.
type fakeProvider struct {
	hits  map[string][]search.Result
	err   error
	calls int
}

func (f *fakeProvider) Search(ctx context.Context, jobTitle, company string, limit int) ([]search.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.hits[jobTitle+"|"+company], nil
}

// stubEngine answers canned judgments for every input record.
type stubEngine struct {
	pageType string
	verdict  string
	err      error
}

func (s *stubEngine) Invoke(ctx context.Context, inputPath, outputDir string, flow engine.Flow) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	records, err := jsonl.Read[types.ClassificationInput](inputPath)
	if err != nil {
		return "", err
	}

	outPath := filepath.Join(outputDir, fmt.Sprintf("stub_%s.jsonl", flow))
	switch flow {
	case engine.FlowPageCategorization:
		judgments := make([]types.PageJudgment, 0, len(records))
		for i, r := range records {
			judgments = append(judgments, types.PageJudgment{
				LineNumber: i, JobIndex: r.JobIndex,
				QueryUID: r.QueryUID, PageUID: r.PageUID,
				PageType: s.pageType,
			})
		}
		return outPath, jsonl.Write(outPath, judgments)
	case engine.FlowRelevanceScoring:
		judgments := make([]types.FinalJudgment, 0, len(records))
		for i, r := range records {
			judgments = append(judgments, types.FinalJudgment{
				LineNumber: i, JobIndex: r.JobIndex,
				QueryUID: r.QueryUID, PageUID: r.PageUID,
				RelevanceScore: 0.9, Verdict: s.verdict,
			})
		}
		return outPath, jsonl.Write(outPath, judgments)
	}
	return "", fmt.Errorf("unknown flow %s", flow)
}

func writeQueries(t *testing.T, manager *runs.Manager, rows [][]string) {
	t.Helper()
	require.NoError(t, manager.EnsureDirs())
	content := "job_title,company,location\n"
	for _, row := range rows {
		content += row[0] + "," + row[1] + ",\n"
	}
	path := filepath.Join(manager.Dir(runs.DirQuery), "queries.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestPipeline(t *testing.T, provider search.Provider, eng engine.Engine) *Pipeline {
	t.Helper()
	manager := runs.NewManager(t.TempDir(), "20260828T000000")
	p := New(manager, Options{SerpLimit: 5, ScrapeWorkers: 2})
	p.Search = provider
	p.Engine = eng
	p.Scraper = scrape.New(&scrape.Options{MaxRetries: 1})
	return p
}

func pageServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><body><main>Backend Engineer opening at Acme. Apply now.</main></body></html>")
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchSerps_WritesPerQueryAndBatch(t *testing.T) {
	provider := &fakeProvider{hits: map[string][]search.Result{
		"Backend Engineer|Acme": {
			{URL: "https://boards.greenhouse.io/acme/1", Title: "Backend Engineer &amp; more", Description: "desc"},
			{URL: "https://acme.com/careers/1", Title: "Careers", Description: "desc"},
		},
	}}
	p := newTestPipeline(t, provider, &stubEngine{})
	writeQueries(t, p.Runs, [][]string{{"Backend Engineer", "Acme"}})

	report, err := p.FetchSerps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 0, report.Skipped)

	perQuery, err := p.Runs.ListFiles(runs.DirSerp, ".jsonl")
	require.NoError(t, err)
	require.Len(t, perQuery, 1)

	batch, err := jsonl.Read[types.SerpResult](report.OutputPath)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "Backend Engineer & more", batch[0].SerpTitle)
	assert.Equal(t, 0, batch[0].JobIndex)
	assert.Len(t, batch[0].QueryUID, 10)
	assert.Len(t, batch[0].PageUID, 10)
}

func TestFetchSerps_LedgerSkipsOnSecondInvocation(t *testing.T) {
	provider := &fakeProvider{hits: map[string][]search.Result{
		"Backend Engineer|Acme": {{URL: "https://acme.com/careers/1", Title: "t", Description: "d"}},
	}}
	p := newTestPipeline(t, provider, &stubEngine{})
	writeQueries(t, p.Runs, [][]string{{"Backend Engineer", "Acme"}})

	_, err := p.FetchSerps(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, provider.calls)

	report, err := p.FetchSerps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, 1, provider.calls)
}

func TestFetchSerps_ProviderFailureLeavesQueryRetryable(t *testing.T) {
	provider := &fakeProvider{err: fmt.Errorf("rate limited")}
	p := newTestPipeline(t, provider, &stubEngine{})
	writeQueries(t, p.Runs, [][]string{{"Backend Engineer", "Acme"}})

	report, err := p.FetchSerps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	// Query is not ledgered; a later invocation retries it.
	provider.err = nil
	provider.hits = map[string][]search.Result{
		"Backend Engineer|Acme": {{URL: "https://acme.com/careers/1", Title: "t", Description: "d"}},
	}
	report, err = p.FetchSerps(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
}

func TestScore_WritesFullAndFilteredDatasets(t *testing.T) {
	provider := &fakeProvider{hits: map[string][]search.Result{
		"Backend Engineer|Acme": {
			{URL: "https://boards.greenhouse.io/acme/1", Title: "t1", Description: "d"},
			{URL: "https://www.linkedin.com/jobs/view/1", Title: "t2", Description: "d"},
			{URL: "https://acme.com/careers/1", Title: "t3", Description: "d"},
		},
	}}
	p := newTestPipeline(t, provider, &stubEngine{})
	writeQueries(t, p.Runs, [][]string{{"Backend Engineer", "Acme"}})

	_, err := p.FetchSerps(context.Background())
	require.NoError(t, err)
	report, err := p.Score(context.Background())
	require.NoError(t, err)

	fullPath, err := p.latestMatching(runs.DirScored, "serp_scored_full")
	require.NoError(t, err)
	full, err := jsonl.Read[types.ScoredResult](fullPath)
	require.NoError(t, err)
	require.Len(t, full, 3)

	filtered, err := jsonl.Read[types.ScoredResult](report.OutputPath)
	require.NoError(t, err)
	// Aggregator row is excluded; ATS and Employer survive.
	require.Len(t, filtered, 2)
	assert.Equal(t, types.LabelATS, filtered[0].Label)
	assert.Equal(t, types.LabelEmployer, filtered[1].Label)
	assert.Contains(t, filtered[0].GoogleSearch, "google.com/search")

	// Sidecar carries the label distribution.
	sidecars, err := filepath.Glob(filepath.Join(p.Runs.Dir(runs.DirMetadata), "score_*.json"))
	require.NoError(t, err)
	require.Len(t, sidecars, 1)
	data, err := os.ReadFile(sidecars[0])
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	dist, ok := doc["label_distribution"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, dist["ATS"])
	assert.EqualValues(t, 1, dist["Aggregator_T1"])
}

func TestRun_EndToEnd(t *testing.T) {
	server := pageServer(t)
	provider := &fakeProvider{hits: map[string][]search.Result{
		"Backend Engineer|Acme": {{URL: server.URL + "/jobs/1", Title: "Backend Engineer", Description: "d"}},
	}}
	eng := &stubEngine{pageType: "Job Posting", verdict: "match"}
	p := newTestPipeline(t, provider, eng)
	writeQueries(t, p.Runs, [][]string{{"Backend Engineer", "Acme"}})

	require.NoError(t, p.Run(context.Background(), RunInput{}))

	status, failedStage, err := p.Runs.Status()
	require.NoError(t, err)
	assert.Equal(t, runs.StatusComplete, status)
	assert.Empty(t, failedStage)

	resultPath, err := p.Runs.LatestFile(runs.DirResults, ".jsonl")
	require.NoError(t, err)
	merged, err := jsonl.Read[types.MergedPosting](resultPath)
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "Job Posting", merged[0].PageType)
	assert.Equal(t, server.URL+"/jobs/1", merged[0].SerpURL)
	assert.Contains(t, merged[0].ScrapedData, "Backend Engineer opening at Acme")
}

func TestRun_FailureRecordsStageAndResumes(t *testing.T) {
	server := pageServer(t)
	provider := &fakeProvider{hits: map[string][]search.Result{
		"Backend Engineer|Acme": {{URL: server.URL + "/jobs/1", Title: "Backend Engineer", Description: "d"}},
	}}
	eng := &stubEngine{err: fmt.Errorf("engine offline")}
	p := newTestPipeline(t, provider, eng)
	writeQueries(t, p.Runs, [][]string{{"Backend Engineer", "Acme"}})

	err := p.Run(context.Background(), RunInput{})
	require.Error(t, err)

	status, failedStage, err := p.Runs.Status()
	require.NoError(t, err)
	assert.Equal(t, runs.StatusFailed, status)
	assert.Equal(t, StageClassify, failedStage)

	// Retry with a healthy engine resumes from the checkpoint; the provider
	// is not called again.
	calls := provider.calls
	eng.err = nil
	eng.pageType = "Job Posting"
	eng.verdict = "match"
	require.NoError(t, p.Run(context.Background(), RunInput{}))
	assert.Equal(t, calls, provider.calls)

	status, _, err = p.Runs.Status()
	require.NoError(t, err)
	assert.Equal(t, runs.StatusComplete, status)
}

func TestClassify_NoEngineConfigured(t *testing.T) {
	p := newTestPipeline(t, &fakeProvider{}, nil)
	require.NoError(t, p.Runs.EnsureDirs())
	input := filepath.Join(p.Runs.Dir(runs.DirClassInput), "serp_class_input_x.jsonl")
	require.NoError(t, jsonl.Write(input, []types.ClassificationInput{{
		QueryUID: "a1b2c3d4e5", PageUID: "f6a7b8c9d0",
		JobTitle: "Backend Engineer", Company: "Acme",
		SerpURL: "https://acme.com/careers/1",
	}}))

	_, err := p.Classify(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no engine configured")

	_, err = p.FinalScore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no engine configured")

	// A configuration error leaves the run status alone.
	status, _, err := p.Runs.Status()
	require.NoError(t, err)
	assert.Equal(t, runs.StatusCreated, status)
}

func TestMerge_RefusesToOverwrite(t *testing.T) {
	server := pageServer(t)
	provider := &fakeProvider{hits: map[string][]search.Result{
		"Backend Engineer|Acme": {{URL: server.URL + "/jobs/1", Title: "Backend Engineer", Description: "d"}},
	}}
	p := newTestPipeline(t, provider, &stubEngine{pageType: "Job Posting", verdict: "match"})
	writeQueries(t, p.Runs, [][]string{{"Backend Engineer", "Acme"}})
	require.NoError(t, p.Run(context.Background(), RunInput{}))

	_, err := p.Merge(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overwrite")

	p.Opts.Overwrite = true
	_, err = p.Merge(context.Background())
	assert.NoError(t, err)
}

func TestMerge_JoinsJudgmentToItsOwnPage(t *testing.T) {
	p := newTestPipeline(t, &fakeProvider{}, &stubEngine{})
	require.NoError(t, p.Runs.EnsureDirs())

	// Two scraped pages for the same job; only one was judged a posting.
	judged := "https://acme.com/careers/1"
	other := "https://boards.greenhouse.io/acme/2"
	judgments := []types.PageJudgment{{
		JobIndex: 0, PageUID: identity.PageUID(judged), PageType: "Job Posting",
	}}
	pages := []types.ScrapedPage{
		{JobIndex: 0, SerpURL: judged, Domain: "acme.com", ScrapedData: "the posting"},
		{JobIndex: 0, SerpURL: other, Domain: "boards.greenhouse.io", ScrapedData: "a different page"},
	}
	require.NoError(t, jsonl.Write(filepath.Join(p.Runs.Dir(runs.DirClassified), "judgments.jsonl"), judgments))
	require.NoError(t, jsonl.Write(filepath.Join(p.Runs.Dir(runs.DirScraped), "scraped.jsonl"), pages))

	report, err := p.Merge(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)

	merged, err := jsonl.Read[types.MergedPosting](report.OutputPath)
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, judged, merged[0].SerpURL)
	assert.Equal(t, "the posting", merged[0].ScrapedData)
}

func TestValidateDependencies(t *testing.T) {
	p := newTestPipeline(t, &fakeProvider{}, &stubEngine{})
	require.NoError(t, p.Runs.EnsureDirs())

	err := p.ValidateDependencies(StageScore)
	require.Error(t, err)
	var depErr *DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.Contains(t, depErr.MissingDependencies, StageFetchSerps)

	assert.Error(t, p.ValidateDependencies("launch"))
}

func TestAvailableStages_Progression(t *testing.T) {
	provider := &fakeProvider{hits: map[string][]search.Result{
		"Backend Engineer|Acme": {{URL: "https://acme.com/careers/1", Title: "t", Description: "d"}},
	}}
	p := newTestPipeline(t, provider, &stubEngine{})
	require.NoError(t, p.Runs.EnsureDirs())

	assert.Equal(t, []string{StageFetchJobs}, p.AvailableStages())

	writeQueries(t, p.Runs, [][]string{{"Backend Engineer", "Acme"}})
	assert.Equal(t, []string{StageFetchSerps}, p.AvailableStages())

	_, err := p.FetchSerps(context.Background())
	require.NoError(t, err)
	assert.Contains(t, p.AvailableStages(), StageScore)
}

func TestLoadQueries_SkipsHeaderAndBlankRows(t *testing.T) {
	p := newTestPipeline(t, &fakeProvider{}, &stubEngine{})
	require.NoError(t, p.Runs.EnsureDirs())
	content := "job_title,company,location\nBackend Engineer,Acme,Berlin\n,,\nData Scientist,Globex,\n"
	path := filepath.Join(p.Runs.Dir(runs.DirQuery), "queries.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	queries, err := p.loadQueries()
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.Equal(t, "Backend Engineer", queries[0].JobTitle)
	assert.Equal(t, "Berlin", queries[0].Location)
	assert.Len(t, queries[0].QueryUID, 10)
	assert.Equal(t, "Globex", queries[1].Company)
}
