package tracker

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileIsEmptyLedger(t *testing.T) {
	l, err := Load(filepath.Join(t.TempDir(), "done.csv"))

	require.NoError(t, err)
	assert.Equal(t, 0, l.Len())
	assert.False(t, l.IsDone("abc1234567"))
}

func TestMarkDone_PersistsImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "done.csv")
	l, err := Load(path)
	require.NoError(t, err)

	err = l.MarkDone(Entry{
		QueryUID: "abc1234567",
		JobTitle: "Data Scientist",
		Company:  "Acme",
		DoneAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	// The row must be on disk before any further processing.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "query_uid,job_title,company,done_at")
	assert.Contains(t, string(data), "abc1234567,Data Scientist,Acme,2025-06-01T12:00:00Z")
}

func TestMarkDone_SurvivesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "done.csv")
	l, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, l.MarkDone(Entry{QueryUID: "aaaa000000", JobTitle: "A", Company: "X"}))
	require.NoError(t, l.MarkDone(Entry{QueryUID: "bbbb111111", JobTitle: "B", Company: "Y"}))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())
	assert.True(t, reloaded.IsDone("aaaa000000"))
	assert.True(t, reloaded.IsDone("bbbb111111"))
	assert.False(t, reloaded.IsDone("cccc222222"))
}

func TestMarkDone_IdempotentAppendOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "done.csv")
	l, err := Load(path)
	require.NoError(t, err)

	entry := Entry{QueryUID: "aaaa000000", JobTitle: "A", Company: "X"}
	require.NoError(t, l.MarkDone(entry))
	require.NoError(t, l.MarkDone(entry))
	require.NoError(t, l.MarkDone(entry))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	// Header plus exactly one row despite repeated marks.
	assert.Len(t, lines, 2)
}

func TestLoad_ToleratesShortRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "done.csv")
	content := "query_uid,job_title,company,done_at\nshortrow\naaaa000000,A,X,2025-06-01T12:00:00Z\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	l, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Len())
	assert.True(t, l.IsDone("aaaa000000"))
}

func TestMarkDone_FillsDoneAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "done.csv")
	l, err := Load(path)
	require.NoError(t, err)

	require.NoError(t, l.MarkDone(Entry{QueryUID: "aaaa000000", JobTitle: "A", Company: "X"}))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.True(t, reloaded.IsDone("aaaa000000"))
}
