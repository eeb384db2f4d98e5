// Package scrape retrieves candidate page content for the classification
// and final-scoring flows. Plain HTTP first; a headless browser fallback
// covers JavaScript-rendered pages. Permanent failure yields empty content,
// which downstream stages must tolerate.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Defaults for the bounded retry policy: fixed delay, no backoff.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 2 * time.Second
	DefaultUserAgent  = "Mozilla/5.0 (compatible; JobserpExplorer/1.0)"
)

// Error represents a scrape failure for one URL.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("scrape error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("scrape error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Options configures a Scraper.
type Options struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	UserAgent  string
	UseBrowser bool
	Verbose    bool
}

// DefaultOptions returns the production retry policy.
func DefaultOptions() *Options {
	return &Options{
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
		RetryDelay: DefaultRetryDelay,
		UserAgent:  DefaultUserAgent,
	}
}

// Scraper fetches pages and extracts their main text.
type Scraper struct {
	opts   *Options
	client *http.Client
}

// New returns a Scraper. A nil opts uses DefaultOptions.
func New(opts *Options) *Scraper {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &Scraper{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
	}
}

// Page fetches a URL and returns its extracted text, retrying up to
// MaxRetries times with a fixed delay. On permanent failure it returns an
// empty string together with the last error; callers record the empty
// content and keep the batch going.
func (s *Scraper) Page(ctx context.Context, rawURL string) (string, error) {
	var lastErr error
	attempts := s.opts.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return "", &Error{URL: rawURL, Message: "canceled", Cause: ctx.Err()}
			case <-time.After(s.opts.RetryDelay):
			}
		}

		text, err := s.fetchOnce(ctx, rawURL)
		if err == nil {
			return text, nil
		}
		lastErr = err
	}
	return "", lastErr
}

func (s *Scraper) fetchOnce(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", &Error{URL: rawURL, Message: "invalid URL", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &Error{URL: rawURL, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &Error{URL: rawURL, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", &Error{URL: rawURL, Message: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{URL: rawURL, Message: "failed to read response body", Cause: err}
	}

	text, err := ExtractMainText(string(body))
	if err != nil {
		return "", &Error{URL: rawURL, Message: "failed to extract text", Cause: err}
	}

	// Too little text usually means a JS-rendered page; fall back to the
	// headless browser when enabled.
	if s.opts.UseBrowser && ShouldUseBrowser(text) {
		html, err := WithBrowser(ctx, rawURL, s.opts.Timeout, s.opts.Verbose)
		if err != nil {
			// Keep whatever the plain fetch produced.
			return text, nil
		}
		if rendered, err := ExtractMainText(html); err == nil && len(rendered) > len(text) {
			return rendered, nil
		}
	}

	return text, nil
}

// ExtractMainText parses HTML and returns the main body text with noise
// elements removed.
func ExtractMainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("nav, footer, header, script, style, noscript, .ad, .ads, .sidebar, .cookie-banner, .popup").Remove()

	var main *goquery.Selection
	for _, selector := range contentSelectors() {
		if sel := doc.Find(selector); sel.Length() > 0 {
			main = sel.First()
			break
		}
	}
	if main == nil {
		main = doc.Find("body")
	}

	return cleanWhitespace(main.Text()), nil
}

// contentSelectors are tried in order; job-board specific selectors first.
func contentSelectors() []string {
	return []string{
		".job-description",
		".job-content",
		"#job-description",
		".posting-content",
		".job-details",
		"[data-testid='job-description']",
		"main",
		"article",
		".content",
		"#content",
	}
}

func cleanWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
