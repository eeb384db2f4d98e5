// Package runs manages the run-scoped working area: one isolated directory
// tree per run_uid, stage output discovery, metadata sidecars and the run
// status record. Every pipeline stage reads and writes only through a
// Manager, never through ad hoc paths.
package runs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Stage directories under a run, in pipeline order.
const (
	DirQuery       = "00_query"
	DirSerp        = "01_serp"
	DirExpanded    = "02_expanded"
	DirScored      = "03_scored"
	DirClassInput  = "04_class_input"
	DirClassified  = "05_classified"
	DirScraped     = "06_scraped"
	DirFinalInput  = "07_final_input"
	DirFinalScored = "08_final_scored"
	DirResults     = "09_results"
	DirLogs        = "logs"
	DirMetadata    = "metadata"
)

const runPrefix = "run_"

// metaFile is the single mutable per-run document.
const metaFile = "meta.json"

// Manager is the handle to one run's working area.
type Manager struct {
	runUID  string
	baseDir string
}

// NewManager returns a Manager for run_uid under baseDir. Nothing is created
// until EnsureDirs is called.
func NewManager(baseDir, runUID string) *Manager {
	return &Manager{runUID: runUID, baseDir: baseDir}
}

// NewRunUID derives a fresh run identifier from the wall clock.
func NewRunUID(now time.Time) string {
	return now.Format("20060102T150405")
}

// RunUID returns the run identifier.
func (m *Manager) RunUID() string { return m.runUID }

// RunDir returns the root directory of the run.
func (m *Manager) RunDir() string {
	return filepath.Join(m.baseDir, runPrefix+m.runUID)
}

// Dir returns the absolute path of a stage directory.
func (m *Manager) Dir(name string) string {
	return filepath.Join(m.RunDir(), name)
}

// EnsureDirs creates the full run directory tree.
func (m *Manager) EnsureDirs() error {
	for _, d := range []string{
		DirQuery, DirSerp, DirExpanded, DirScored, DirClassInput,
		DirClassified, DirScraped, DirFinalInput, DirFinalScored,
		DirResults, DirLogs, DirMetadata,
	} {
		if err := os.MkdirAll(m.Dir(d), 0o755); err != nil {
			return fmt.Errorf("failed to create run directory %s: %w", d, err)
		}
	}
	return nil
}

// LatestFile returns the most recently modified file in a stage directory
// matching ext (e.g. ".jsonl"). Resumption logic discovers stage inputs this
// way. Returns os.ErrNotExist when the directory holds no matching file.
func (m *Manager) LatestFile(dir, ext string) (string, error) {
	entries, err := os.ReadDir(m.Dir(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return "", os.ErrNotExist
		}
		return "", fmt.Errorf("failed to read stage directory %s: %w", dir, err)
	}

	var latest string
	var latestMod time.Time
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = filepath.Join(m.Dir(dir), entry.Name())
			latestMod = info.ModTime()
		}
	}
	if latest == "" {
		return "", os.ErrNotExist
	}
	return latest, nil
}

// ListFiles returns the files in a stage directory matching ext, sorted by
// name.
func (m *Manager) ListFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(m.Dir(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read stage directory %s: %w", dir, err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ext) {
			continue
		}
		files = append(files, filepath.Join(m.Dir(dir), entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Metadata loads the run metadata document. A missing document is an empty
// map, not an error.
func (m *Manager) Metadata() (map[string]any, error) {
	data, err := os.ReadFile(filepath.Join(m.Dir(DirMetadata), metaFile))
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run metadata: %w", err)
	}
	meta := map[string]any{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse run metadata: %w", err)
	}
	return meta, nil
}

// SaveMetadata merges fields into the run metadata document. When overwrite
// is false, fields already present keep their existing values.
func (m *Manager) SaveMetadata(fields map[string]any, overwrite bool) error {
	current, err := m.Metadata()
	if err != nil {
		return err
	}
	for k, v := range fields {
		if _, exists := current[k]; exists && !overwrite {
			continue
		}
		current[k] = v
	}

	if err := os.MkdirAll(m.Dir(DirMetadata), 0o755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}
	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.Dir(DirMetadata), metaFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write run metadata: %w", err)
	}
	return nil
}

// WriteSidecar writes a per-stage metadata sidecar (counts, output paths)
// into the metadata directory.
func (m *Manager) WriteSidecar(name string, doc any) (string, error) {
	if err := os.MkdirAll(m.Dir(DirMetadata), 0o755); err != nil {
		return "", fmt.Errorf("failed to create metadata directory: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal sidecar %s: %w", name, err)
	}
	path := filepath.Join(m.Dir(DirMetadata), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write sidecar %s: %w", name, err)
	}
	return path, nil
}

// ReadLog returns the contents of a stage's log file, or an empty string if
// the stage has not logged anything yet.
func (m *Manager) ReadLog(stage string) string {
	data, err := os.ReadFile(filepath.Join(m.Dir(DirLogs), stage+".log"))
	if err != nil {
		return ""
	}
	return string(data)
}

// ListRuns returns all run UIDs under baseDir, most recent first.
func ListRuns(baseDir string) ([]string, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	var uids []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), runPrefix) {
			uids = append(uids, strings.TrimPrefix(entry.Name(), runPrefix))
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(uids)))
	return uids, nil
}
