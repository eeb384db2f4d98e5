// Package remotive is the client for the remote-jobs listing API that seeds
// a run's query batch.
package remotive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://remotive.com/api/remote-jobs"

// DefaultTimeout bounds a listing request.
const DefaultTimeout = 30 * time.Second

// Job is one listing returned by the API, reduced to the fields the
// pipeline consumes.
type Job struct {
	Title    string
	Company  string
	Location string
}

// Error represents a failure talking to the listing API.
type Error struct {
	Query   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("remotive error for query %q: %s: %v", e.Query, e.Message, e.Cause)
	}
	return fmt.Sprintf("remotive error for query %q: %s", e.Query, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Client talks to the remote-jobs API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient returns a client with production defaults.
func NewClient() *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

type apiResponse struct {
	Jobs []struct {
		Title                     string `json:"title"`
		CompanyName               string `json:"company_name"`
		CandidateRequiredLocation string `json:"candidate_required_location"`
	} `json:"jobs"`
}

// FetchJobs searches listings matching query, up to limit rows.
func (c *Client) FetchJobs(ctx context.Context, query string, limit int) ([]Job, error) {
	endpoint, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, &Error{Query: query, Message: "invalid base URL", Cause: err}
	}
	params := url.Values{}
	params.Set("search", query)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, &Error{Query: query, Message: "failed to create request", Cause: err}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &Error{Query: query, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Query: query, Message: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Query: query, Message: "failed to read response body", Cause: err}
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &Error{Query: query, Message: "failed to parse response", Cause: err}
	}

	jobs := make([]Job, 0, len(parsed.Jobs))
	for _, j := range parsed.Jobs {
		jobs = append(jobs, Job{
			Title:    j.Title,
			Company:  j.CompanyName,
			Location: j.CandidateRequiredLocation,
		})
	}
	return jobs, nil
}
