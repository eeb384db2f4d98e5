// Package tracker maintains the append-only "done" ledger for a run: which
// query UIDs have already been fetched. The ledger is flushed after every
// item so an interruption loses at most the in-flight query.
package tracker

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Entry is one ledger row.
type Entry struct {
	QueryUID string
	JobTitle string
	Company  string
	DoneAt   time.Time
}

var header = []string{"query_uid", "job_title", "company", "done_at"}

// Ledger tracks completed query UIDs for a run. It only grows: no UID is
// ever removed once marked done. Recovering from a corrupt fetch means
// editing the ledger file out-of-band or starting a new run.
type Ledger struct {
	path string
	done map[string]Entry
}

// Load reads the ledger at path. A missing file is not an error; it is the
// empty ledger of a first-ever run.
func Load(path string) (*Ledger, error) {
	l := &Ledger{path: path, done: make(map[string]Entry)}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open done ledger %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read done ledger %s: %w", path, err)
		}
		if first {
			first = false
			if len(row) > 0 && row[0] == header[0] {
				continue
			}
		}
		if len(row) < 4 {
			continue
		}
		doneAt, _ := time.Parse(time.RFC3339, row[3])
		l.done[row[0]] = Entry{
			QueryUID: row[0],
			JobTitle: row[1],
			Company:  row[2],
			DoneAt:   doneAt,
		}
	}
	return l, nil
}

// IsDone reports whether a query UID has already been processed.
func (l *Ledger) IsDone(queryUID string) bool {
	_, ok := l.done[queryUID]
	return ok
}

// Len returns the number of completed queries.
func (l *Ledger) Len() int {
	return len(l.done)
}

// MarkDone records a completed query and appends it to the ledger file
// immediately, syncing before return. Marking an already-done UID is a
// no-op.
func (l *Ledger) MarkDone(entry Entry) error {
	if l.IsDone(entry.QueryUID) {
		return nil
	}
	if entry.DoneAt.IsZero() {
		entry.DoneAt = time.Now()
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open done ledger %s: %w", l.path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat done ledger: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("failed to write ledger header: %w", err)
		}
	}
	row := []string{entry.QueryUID, entry.JobTitle, entry.Company, entry.DoneAt.Format(time.RFC3339)}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("failed to append ledger row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush ledger: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync ledger: %w", err)
	}

	l.done[entry.QueryUID] = entry
	return nil
}
