// Package pipeline provides the high-level orchestration of the SERP
// qualification run: stage sequencing, run status transitions, per-stage
// logging and the optional database mirror. Stages only touch the
// filesystem through the run manager; each one is separately invocable and
// idempotent.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonathan/jobserp-explorer/internal/db"
	"github.com/jonathan/jobserp-explorer/internal/engine"
	"github.com/jonathan/jobserp-explorer/internal/observability"
	"github.com/jonathan/jobserp-explorer/internal/remotive"
	"github.com/jonathan/jobserp-explorer/internal/runs"
	"github.com/jonathan/jobserp-explorer/internal/scrape"
	"github.com/jonathan/jobserp-explorer/internal/search"
)

// Stage names, as used in subcommands, logs, sidecars and the mirror.
const (
	StageFetchJobs   = "fetch-jobs"
	StageFetchSerps  = "fetch-serps"
	StageScore       = "score"
	StageExportClass = "export-classify"
	StageClassify    = "classify"
	StageScrape      = "scrape"
	StageExportFinal = "export-final"
	StageFinalScore  = "final-score"
	StageMerge       = "merge"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
	RunUID  string `json:"run_uid,omitempty"`
	Content any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// Options holds the tunables of one pipeline run.
type Options struct {
	SerpLimit     int
	PerLabel      int
	UnknownQuota  int
	ScrapeWorkers int
	UseBrowser    bool
	Verbose       bool
	Overwrite     bool
	OnProgress    ProgressCallback
}

// DefaultScrapeWorkers bounds the parallel scrape fetches.
const DefaultScrapeWorkers = 4

// Pipeline wires the stage collaborators around one run.
type Pipeline struct {
	Runs    *runs.Manager
	Search  search.Provider
	Jobs    *remotive.Client
	Scraper *scrape.Scraper
	Engine  engine.Engine
	Mirror  *db.DB
	Opts    Options

	printer *observability.Printer
}

// New returns a Pipeline for the given run. Mirror may be nil; the run then
// lives on the filesystem only.
func New(manager *runs.Manager, opts Options) *Pipeline {
	if opts.ScrapeWorkers <= 0 {
		opts.ScrapeWorkers = DefaultScrapeWorkers
	}
	return &Pipeline{
		Runs:    manager,
		Opts:    opts,
		printer: observability.NewPrinter(os.Stdout),
	}
}

func (p *Pipeline) emit(stage, message string, content any) {
	if p.Opts.OnProgress != nil {
		p.Opts.OnProgress(ProgressEvent{
			Stage:   stage,
			Message: message,
			RunUID:  p.Runs.RunUID(),
			Content: content,
		})
	}
}

// logger opens the stage's log file under logs/. The returned close func
// must be called when the stage finishes.
func (p *Pipeline) logger(stage string) (*log.Logger, func()) {
	path := filepath.Join(p.Runs.Dir(runs.DirLogs), stage+".log")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return log.New(os.Stderr, stage+" ", log.LstdFlags), func() {}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return log.New(os.Stderr, stage+" ", log.LstdFlags), func() {}
	}

	var w io.Writer = f
	if p.Opts.Verbose {
		w = io.MultiWriter(f, os.Stderr)
	}
	return log.New(w, "", log.LstdFlags), func() { _ = f.Close() }
}

// mirror records the stage artifact in the database when one is configured.
// The mirror is best effort; failures are logged and never fail the stage.
func (p *Pipeline) mirror(ctx context.Context, logf *log.Logger, status runs.Status, stage, path string, records int, content any) {
	if p.Mirror == nil {
		return
	}
	if err := p.Mirror.UpsertRun(ctx, p.Runs.RunUID(), string(status)); err != nil {
		logf.Printf("warning: failed to mirror run: %v", err)
		return
	}
	if err := p.Mirror.SaveArtifact(ctx, p.Runs.RunUID(), stage, path, records, content); err != nil {
		logf.Printf("warning: failed to mirror artifact %s: %v", stage, err)
	}
}

// setStatus advances the run status and keeps the mirror in step.
func (p *Pipeline) setStatus(ctx context.Context, status runs.Status) error {
	if err := p.Runs.SetStatus(status); err != nil {
		return err
	}
	if p.Mirror != nil {
		current, _, _ := p.Runs.Status()
		_ = p.Mirror.UpsertRun(ctx, p.Runs.RunUID(), string(current))
	}
	return nil
}

// fail records the FAILED state with the broken stage.
func (p *Pipeline) fail(ctx context.Context, stage string, cause error) error {
	_ = p.Runs.Fail(stage)
	if p.Mirror != nil {
		_ = p.Mirror.UpsertRun(ctx, p.Runs.RunUID(), string(runs.StatusFailed))
	}
	return fmt.Errorf("stage %s failed: %w", stage, cause)
}

// timestamp names stage output files so re-runs never clobber earlier
// artifacts.
func timestamp(now time.Time) string {
	return now.Format("20060102T150405")
}

// latestMatching returns the newest file in a stage dir whose name contains
// substr. The run manager's LatestFile covers the common single-dataset
// case; scored output holds two datasets side by side.
func (p *Pipeline) latestMatching(dir, substr string) (string, error) {
	files, err := p.Runs.ListFiles(dir, ".jsonl")
	if err != nil {
		return "", err
	}
	var latest string
	var latestMod time.Time
	for _, f := range files {
		if !strings.Contains(filepath.Base(f), substr) {
			continue
		}
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = f
			latestMod = info.ModTime()
		}
	}
	if latest == "" {
		return "", os.ErrNotExist
	}
	return latest, nil
}

// stageHasOutput reports whether a stage already produced a dataset, for
// idempotent sequencing.
func (p *Pipeline) stageHasOutput(dir, ext string) bool {
	files, err := p.Runs.ListFiles(dir, ext)
	return err == nil && len(files) > 0
}
