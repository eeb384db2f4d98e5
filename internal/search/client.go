// Package search is the client for the SERP provider: given a job title and
// company it returns the search-engine results page hits. Failures are
// per-query and never fatal to a batch; the caller leaves the query
// un-ledgered so it is retried on the next invocation.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBaseURL is the provider's search endpoint.
const DefaultBaseURL = "https://api.spider.cloud/search"

// DefaultTimeout bounds one search call.
const DefaultTimeout = 60 * time.Second

// DefaultLimit is the number of hits requested per query.
const DefaultLimit = 8

// Result is one SERP hit.
type Result struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Error represents a failure of one search call.
type Error struct {
	Query   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("search error for query %q: %s: %v", e.Query, e.Message, e.Cause)
	}
	return fmt.Sprintf("search error for query %q: %s", e.Query, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Provider is the interface the pipeline depends on; the orchestrator takes
// a Provider so tests can substitute a fake.
type Provider interface {
	Search(ctx context.Context, jobTitle, company string, limit int) ([]Result, error)
}

// Client talks to the SERP provider API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient returns a client with production defaults. The API key is a
// required credential; Validate at configuration time catches it missing.
func NewClient(apiKey string) *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

type searchRequest struct {
	Search       string `json:"search"`
	SearchLimit  int    `json:"search_limit"`
	ReturnFormat string `json:"return_format"`
}

// Search returns SERP hits for "<jobTitle> <company>". The provider answers
// either a bare list or an envelope with a "content" list; both are
// accepted.
func (c *Client) Search(ctx context.Context, jobTitle, company string, limit int) ([]Result, error) {
	query := jobTitle + " " + company
	if limit <= 0 {
		limit = DefaultLimit
	}

	payload, err := json.Marshal(searchRequest{
		Search:       query,
		SearchLimit:  limit,
		ReturnFormat: "json",
	})
	if err != nil {
		return nil, &Error{Query: query, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Query: query, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

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

	results, err := decodeResults(body)
	if err != nil {
		return nil, &Error{Query: query, Message: "failed to parse response", Cause: err}
	}
	return results, nil
}

func decodeResults(body []byte) ([]Result, error) {
	var envelope struct {
		Content []Result `json:"content"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Content != nil {
		return envelope.Content, nil
	}

	var list []Result
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	return nil, fmt.Errorf("response is neither an envelope nor a list")
}
