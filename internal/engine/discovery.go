package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FindOutput locates an engine output artifact in dir. Files whose name
// contains the invocation token are preferred; when none matches, the most
// recently modified .jsonl file newer than since is returned. Artifacts
// older than the invocation start are never accepted, so a crashed earlier
// invocation cannot be mistaken for the current one.
func FindOutput(dir, token string, since time.Time) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read output dir %s: %w", dir, err)
	}

	var newest string
	var newestMod time.Time
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jsonl" {
			continue
		}
		if token != "" && strings.Contains(entry.Name(), token) {
			return filepath.Join(dir, entry.Name()), nil
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(since) {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = entry.Name()
			newestMod = info.ModTime()
		}
	}

	if newest == "" {
		return "", fmt.Errorf("no engine output found in %s newer than %s", dir, since.Format(time.RFC3339))
	}
	return filepath.Join(dir, newest), nil
}
