// Package types defines the record types passed between pipeline stages.
// Records are validated at stage boundaries so that malformed rows are
// quarantined early instead of surfacing as missing-field errors downstream.
package types

// Label classifies the source domain of a SERP result.
type Label string

const (
	LabelEmployer     Label = "Employer"
	LabelATS          Label = "ATS"
	LabelAggregatorT1 Label = "Aggregator_T1"
	LabelAggregatorT2 Label = "Aggregator_T2"
	LabelAggregatorT3 Label = "Aggregator_T3"
	LabelUnknown      Label = "Unknown"
)

// JobQuery is one (job title, company) pair to search for.
type JobQuery struct {
	JobTitle string `json:"job_title" validate:"required"`
	Company  string `json:"company" validate:"required"`
	Location string `json:"location,omitempty"`
	QueryUID string `json:"query_uid" validate:"required,len=10,hexadecimal"`
}

// SerpResult is one search-result hit for a JobQuery.
type SerpResult struct {
	QueryUID        string `json:"query_uid" validate:"required,len=10,hexadecimal"`
	PageUID         string `json:"page_uid" validate:"required,len=10,hexadecimal"`
	JobIndex        int    `json:"job_index" validate:"min=0"`
	JobTitle        string `json:"job_title" validate:"required"`
	Company         string `json:"company" validate:"required"`
	SerpTitle       string `json:"serp_title"`
	SerpDescription string `json:"serp_description"`
	SerpURL         string `json:"serp_url" validate:"required,url"`
	Domain          string `json:"domain"`
}

// ScoredResult is a SerpResult augmented with its domain classification.
type ScoredResult struct {
	SerpResult
	Label        Label   `json:"label" validate:"required"`
	Score        float64 `json:"score"`
	GoogleSearch string  `json:"google_search,omitempty"`
}

// ClassificationInput is one line of the export consumed by the
// page-categorization flow of the LLM workflow engine.
type ClassificationInput struct {
	JobIndex    int    `json:"job_index" validate:"min=0"`
	QueryUID    string `json:"query_uid" validate:"required,len=10,hexadecimal"`
	JobTitle    string `json:"job_title" validate:"required"`
	Company     string `json:"company" validate:"required"`
	PageUID     string `json:"page_uid" validate:"required,len=10,hexadecimal"`
	SerpURL     string `json:"serp_url" validate:"required,url"`
	ScrapedData string `json:"scraped_data"`
}

// ScrapedPage is one line of the scrape stage output. ScrapedData is empty
// when scraping failed permanently; downstream stages must tolerate that.
type ScrapedPage struct {
	JobIndex     int     `json:"job_index" validate:"min=0"`
	JobTitle     string  `json:"job_title"`
	Company      string  `json:"company"`
	Label        Label   `json:"label"`
	Score        float64 `json:"score"`
	Domain       string  `json:"domain"`
	SerpURL      string  `json:"serp_url" validate:"required,url"`
	SerpTitle    string  `json:"serp_title"`
	GoogleSearch string  `json:"google_search,omitempty"`
	ScrapedData  string  `json:"scraped_data"`
}

// PageJudgment is one line of the page-categorization flow output.
type PageJudgment struct {
	LineNumber int    `json:"line_number"`
	JobIndex   int    `json:"job_index" validate:"min=0"`
	QueryUID   string `json:"query_uid"`
	PageUID    string `json:"page_uid"`
	PageType   string `json:"page_type" validate:"required"`
	Reasoning  string `json:"reasoning,omitempty"`
}

// FinalJudgment is one line of the relevance-scoring flow output.
type FinalJudgment struct {
	LineNumber     int     `json:"line_number"`
	JobIndex       int     `json:"job_index" validate:"min=0"`
	QueryUID       string  `json:"query_uid"`
	PageUID        string  `json:"page_uid"`
	RelevanceScore float64 `json:"relevance_score" validate:"min=0,max=1"`
	Verdict        string  `json:"verdict" validate:"required"`
	Reasoning      string  `json:"reasoning,omitempty"`
}

// MergedPosting is one line of the merged results dataset: a page the engine
// judged to be a job posting, joined with its scraped content.
type MergedPosting struct {
	PageJudgment
	SerpURL     string `json:"serp_url,omitempty"`
	Domain      string `json:"domain,omitempty"`
	ScrapedData string `json:"scraped_data,omitempty"`
}
