package observability

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/jobserp-explorer/internal/types"
)

func TestPrintStageReport(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintStageReport(&StageReport{
		Stage:      "scrape",
		Attempted:  10,
		Succeeded:  8,
		Failed:     2,
		OutputPath: "run_x/05_scraped/scraped.jsonl",
	})
	output := buf.String()

	assert.Contains(t, output, "STAGE SCRAPE")
	assert.Contains(t, output, "Attempted: 10")
	assert.Contains(t, output, "Succeeded: 8")
	assert.Contains(t, output, "Failed:    2")
	assert.Contains(t, output, "05_scraped")
}

func TestPrintStageReport_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintStageReport(nil)

	assert.Empty(t, buf.String())
}

func TestPrintStageReport_SkippedShownOnlyWhenPresent(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintStageReport(&StageReport{Stage: "fetch-serps", Attempted: 3, Succeeded: 3})
	assert.NotContains(t, buf.String(), "Skipped")

	buf.Reset()
	p.PrintStageReport(&StageReport{Stage: "fetch-serps", Attempted: 3, Succeeded: 1, Skipped: 2})
	assert.Contains(t, buf.String(), "Skipped:   2")
}

func TestPrintQueries(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	queries := []types.JobQuery{
		{JobTitle: "Backend Engineer", Company: "Acme", QueryUID: "a1b2c3d4e5"},
		{JobTitle: "Data Scientist", Company: "Globex", QueryUID: "f6a7b8c9d0"},
	}

	p.PrintQueries(queries)
	output := buf.String()

	assert.Contains(t, output, "JOB QUERIES")
	assert.Contains(t, output, "Backend Engineer @ Acme")
	assert.Contains(t, output, "a1b2c3d4e5")
}

func TestPrintQueries_TruncatesLongLists(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	queries := make([]types.JobQuery, 8)
	for i := range queries {
		queries[i] = types.JobQuery{JobTitle: "Engineer", Company: "Acme", QueryUID: "a1b2c3d4e5"}
	}

	p.PrintQueries(queries)

	assert.Contains(t, buf.String(), "and 3 more")
}

func TestPrintCandidates(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	rows := []types.ScoredResult{
		{
			SerpResult: types.SerpResult{Domain: "boards.greenhouse.io"},
			Label:      types.LabelATS, Score: 3,
		},
		{
			SerpResult: types.SerpResult{Domain: "acme.com"},
			Label:      types.LabelEmployer, Score: 2.5,
		},
	}

	p.PrintCandidates(rows)
	output := buf.String()

	assert.Contains(t, output, "SCRAPE CANDIDATES")
	assert.Contains(t, output, "ATS")
	assert.Contains(t, output, "boards.greenhouse.io")
	assert.Contains(t, output, "Employer")
}

func TestPrintJudgments(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	judgments := []types.FinalJudgment{
		{PageUID: "f6a7b8c9d0", RelevanceScore: 0.92, Verdict: "match"},
	}

	p.PrintJudgments(judgments)
	output := buf.String()

	assert.Contains(t, output, "RELEVANCE JUDGMENTS")
	assert.Contains(t, output, "f6a7b8c9d0")
	assert.Contains(t, output, "0.92")
	assert.True(t, strings.Contains(output, "match"))
}

func TestPrintJudgments_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintJudgments(nil)

	assert.Contains(t, buf.String(), "No judgments produced")
}
