package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_EnvelopeResponse(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"content":[
			{"url":"https://acme.com/jobs/1","title":"Data Scientist - Acme","description":"Join us"},
			{"url":"https://boards.greenhouse.io/acme/2","title":"DS role","description":"Apply"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key")
	c.BaseURL = srv.URL

	results, err := c.Search(context.Background(), "Data Scientist", "Acme", 8)
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "Data Scientist Acme", gotBody["search"])
	assert.Equal(t, float64(8), gotBody["search_limit"])
	require.Len(t, results, 2)
	assert.Equal(t, "https://acme.com/jobs/1", results[0].URL)
}

func TestSearch_BareListResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"url":"https://x.example/1","title":"t","description":"d"}]`))
	}))
	defer srv.Close()

	c := NewClient("k")
	c.BaseURL = srv.URL

	results, err := c.Search(context.Background(), "a", "b", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://x.example/1", results[0].URL)
}

func TestSearch_DefaultLimit(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	c := NewClient("k")
	c.BaseURL = srv.URL

	_, err := c.Search(context.Background(), "a", "b", 0)
	require.NoError(t, err)
	assert.Equal(t, float64(DefaultLimit), gotBody["search_limit"])
}

func TestSearch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("k")
	c.BaseURL = srv.URL

	_, err := c.Search(context.Background(), "a", "b", 5)
	require.Error(t, err)

	var searchErr *Error
	require.ErrorAs(t, err, &searchErr)
	assert.Contains(t, searchErr.Message, "429")
	assert.Contains(t, searchErr.Query, "a b")
}

func TestSearch_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"weird":true}`))
	}))
	defer srv.Close()

	c := NewClient("k")
	c.BaseURL = srv.URL

	_, err := c.Search(context.Background(), "a", "b", 5)
	assert.Error(t, err)
}
