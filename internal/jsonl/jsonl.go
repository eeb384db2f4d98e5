// Package jsonl reads and writes line-delimited JSON datasets, the exchange
// format between pipeline stages and the LLM workflow engine.
package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxLineBytes bounds a single record; scraped pages can be large.
const maxLineBytes = 16 * 1024 * 1024

// Write marshals each record to one JSON line at path, creating parent
// directories as needed. Existing files are truncated, not appended to, so
// re-running a stage never duplicates records.
func Write[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i, record := range records {
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("failed to encode record %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return f.Sync()
}

// Read decodes every line of path into T. Blank lines are skipped. A line
// that fails to decode aborts with its line number so the operator can find
// the corrupt record.
func Read[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var records []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var record T
		if err := json.Unmarshal([]byte(text), &record); err != nil {
			return nil, fmt.Errorf("failed to decode %s line %d: %w", path, line, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, nil
}

// ReadLenient decodes every line of path into T, skipping lines that fail to
// decode and returning the count of skipped lines. Used where a partially
// corrupt dataset should be quarantined per record, not rejected wholesale.
func ReadLenient[T any](path string) ([]T, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var records []T
	skipped := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var record T
		if err := json.Unmarshal([]byte(text), &record); err != nil {
			skipped++
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return records, skipped, nil
}
