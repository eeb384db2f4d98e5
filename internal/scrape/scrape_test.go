package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScraper() *Scraper {
	return New(&Options{
		Timeout:    5 * time.Second,
		MaxRetries: 3,
		RetryDelay: 10 * time.Millisecond,
	})
}

func TestNew_PartialOptionsKeepRetryPolicy(t *testing.T) {
	// Callers setting only behavior flags still get the bounded retry.
	s := New(&Options{UseBrowser: true, Verbose: true})

	assert.Equal(t, DefaultTimeout, s.opts.Timeout)
	assert.Equal(t, DefaultMaxRetries, s.opts.MaxRetries)
	assert.Equal(t, DefaultRetryDelay, s.opts.RetryDelay)
	assert.Equal(t, DefaultUserAgent, s.opts.UserAgent)
	assert.True(t, s.opts.UseBrowser)
}

func TestPage_ExtractsJobDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<nav>Menu</nav>
			<div class="job-description">Senior Gopher wanted.
			Build pipelines.</div>
			<footer>Legal</footer>
		</body></html>`))
	}))
	defer srv.Close()

	text, err := testScraper().Page(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Contains(t, text, "Senior Gopher wanted.")
	assert.Contains(t, text, "Build pipelines.")
	assert.NotContains(t, text, "Menu")
	assert.NotContains(t, text, "Legal")
}

func TestPage_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`<html><body><main>finally up</main></body></html>`))
	}))
	defer srv.Close()

	text, err := testScraper().Page(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "finally up", text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPage_PermanentFailureYieldsEmpty(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	text, err := testScraper().Page(context.Background(), srv.URL)

	require.Error(t, err)
	assert.Empty(t, text)
	// Bounded retry: exactly MaxRetries attempts, fixed delay.
	assert.Equal(t, int32(3), calls.Load())

	var scrapeErr *Error
	require.ErrorAs(t, err, &scrapeErr)
	assert.Contains(t, scrapeErr.Message, "403")
}

func TestPage_InvalidURL(t *testing.T) {
	_, err := testScraper().Page(context.Background(), "not-a-url")
	assert.Error(t, err)
}

func TestPage_ContextCancellationStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(&Options{MaxRetries: 5, RetryDelay: time.Minute})
	_, err := s.Page(ctx, srv.URL)
	assert.Error(t, err)
}

func TestExtractMainText_FallsBackToBody(t *testing.T) {
	text, err := ExtractMainText(`<html><body><p>plain page</p></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, "plain page", text)
}

func TestExtractMainText_CollapsesWhitespace(t *testing.T) {
	text, err := ExtractMainText("<html><body><main>  a  \n\n\n   b  </main></body></html>")
	require.NoError(t, err)
	assert.Equal(t, "a\nb", text)
}

func TestShouldUseBrowser(t *testing.T) {
	assert.True(t, ShouldUseBrowser("tiny"))
	long := make([]byte, MinContentLength)
	for i := range long {
		long[i] = 'x'
	}
	assert.False(t, ShouldUseBrowser(string(long)))
}
