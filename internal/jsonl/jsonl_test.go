package jsonl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/jobserp-explorer/internal/types"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "records.jsonl")
	in := []types.ClassificationInput{
		{
			JobIndex: 0,
			QueryUID: "0123456789",
			JobTitle: "Data Scientist",
			Company:  "Acme",
			PageUID:  "abcdef0123",
			SerpURL:  "https://acme.com/jobs/1?ref=serp&x=y",
		},
		{
			JobIndex: 1,
			QueryUID: "aaaa000000",
			JobTitle: "Engineer",
			Company:  "Globex",
			PageUID:  "bbbb111111",
			SerpURL:  "https://boards.greenhouse.io/globex/2",
		},
	}

	require.NoError(t, Write(path, in))

	out, err := Read[types.ClassificationInput](path)
	require.NoError(t, err)
	require.Len(t, out, 2)

	// The identity quadruple survives the round trip intact.
	assert.Equal(t, in[0].JobIndex, out[0].JobIndex)
	assert.Equal(t, in[0].QueryUID, out[0].QueryUID)
	assert.Equal(t, in[0].PageUID, out[0].PageUID)
	assert.Equal(t, in[0].SerpURL, out[0].SerpURL)
	assert.Equal(t, in[1], out[1])
}

func TestWrite_DoesNotEscapeHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	require.NoError(t, Write(path, []map[string]string{{"title": "C&K <Staff> Engineer"}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "C&K <Staff> Engineer")
}

func TestWrite_TruncatesOnRerun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	require.NoError(t, Write(path, []int{1, 2, 3}))
	require.NoError(t, Write(path, []int{4}))

	out, err := Read[int](path)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, out)
}

func TestRead_SkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"a\":1}\n\n{\"a\":2}\n"), 0o644))

	out, err := Read[map[string]int](path)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestRead_ReportsBadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"a\":1}\nnot json\n"), 0o644))

	_, err := Read[map[string]int](path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReadLenient_QuarantinesBadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"a\":1}\nnot json\n{\"a\":3}\n"), 0o644))

	out, skipped, err := ReadLenient[map[string]int](path)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, 1, skipped)
}

func TestRead_MissingFile(t *testing.T) {
	_, err := Read[int](filepath.Join(t.TempDir(), "nope.jsonl"))
	assert.Error(t, err)
}
