package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/jobserp-explorer/internal/config"
	"github.com/jonathan/jobserp-explorer/internal/db"
	"github.com/jonathan/jobserp-explorer/internal/engine"
	"github.com/jonathan/jobserp-explorer/internal/llm"
	"github.com/jonathan/jobserp-explorer/internal/pipeline"
	"github.com/jonathan/jobserp-explorer/internal/remotive"
	"github.com/jonathan/jobserp-explorer/internal/runs"
	"github.com/jonathan/jobserp-explorer/internal/scrape"
	"github.com/jonathan/jobserp-explorer/internal/search"
)

// defaultBaseDir holds the run directories unless --base-dir overrides it.
const defaultBaseDir = "runs"

// stageFlags are the flags shared by every stage subcommand. Config file
// values fill in whatever the flags leave unset.
type stageFlags struct {
	configPath    string
	baseDir       string
	runUID        string
	serpLimit     int
	perLabel      int
	unknownQuota  int
	scrapeWorkers int
	useBrowser    bool
	verbose       bool
	apiKey        string
	spiderKey     string
	databaseURL   string
}

func (f *stageFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	cmd.Flags().StringVar(&f.baseDir, "base-dir", "", "Directory holding the run directories (default \"runs\")")
	cmd.Flags().StringVar(&f.runUID, "run", "", "Run to operate on (default: most recent run)")
	cmd.Flags().IntVar(&f.serpLimit, "serp-limit", 0, "SERP results requested per query")
	cmd.Flags().IntVar(&f.perLabel, "per-label", 0, "Scrape candidates kept per job and domain label")
	cmd.Flags().IntVar(&f.unknownQuota, "unknown-quota", 0, "Unknown-domain candidates kept per job")
	cmd.Flags().IntVar(&f.scrapeWorkers, "scrape-workers", 0, "Parallel scrape fetches")
	cmd.Flags().BoolVar(&f.useBrowser, "use-browser", false, "Use headless browser for SPA sites (requires Chrome)")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Print detailed debug information")
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "Gemini API key (optional, defaults to GEMINI_API_KEY env var)")
	cmd.Flags().StringVar(&f.spiderKey, "spider-key", "", "SERP provider API key (optional, defaults to SPIDER_API_KEY env var)")
	cmd.Flags().StringVar(&f.databaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
}

// resolve merges the config file, explicit flags and environment into one
// Config. Flags set on the command line always win.
func (f *stageFlags) resolve(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.FromEnv()
	if f.configPath != "" {
		loaded, err := config.LoadConfig(f.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("base-dir") {
		cfg.BaseDir = f.baseDir
	}
	if cmd.Flags().Changed("run") {
		cfg.RunUID = f.runUID
	}
	if cmd.Flags().Changed("serp-limit") {
		cfg.SerpLimit = f.serpLimit
	}
	if cmd.Flags().Changed("per-label") {
		cfg.PerLabel = f.perLabel
	}
	if cmd.Flags().Changed("unknown-quota") {
		cfg.UnknownQuota = f.unknownQuota
	}
	if cmd.Flags().Changed("scrape-workers") {
		cfg.ScrapeWorkers = f.scrapeWorkers
	}
	if cmd.Flags().Changed("use-browser") {
		cfg.UseBrowser = f.useBrowser
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = f.verbose
	}
	if f.apiKey != "" {
		cfg.GeminiAPIKey = f.apiKey
	}
	if f.spiderKey != "" {
		cfg.SpiderAPIKey = f.spiderKey
	}
	if f.databaseURL != "" {
		cfg.DatabaseURL = f.databaseURL
	}

	merged := cfg.MergeWithDefaults(config.Config{BaseDir: defaultBaseDir})
	return &merged, nil
}

// resolveRunUID picks the run a stage command operates on: the explicit
// --run value, otherwise the most recent run under the base directory.
func resolveRunUID(cfg *config.Config) (string, error) {
	if cfg.RunUID != "" {
		return cfg.RunUID, nil
	}
	uids, err := runs.ListRuns(cfg.BaseDir)
	if err != nil {
		return "", err
	}
	if len(uids) == 0 {
		return "", fmt.Errorf("no runs under %s; start one with fetch-jobs or run", cfg.BaseDir)
	}
	return uids[0], nil
}

func pipelineOptions(cfg *config.Config, overwrite bool) pipeline.Options {
	return pipeline.Options{
		SerpLimit:     cfg.SerpLimit,
		PerLabel:      cfg.PerLabel,
		UnknownQuota:  cfg.UnknownQuota,
		ScrapeWorkers: cfg.ScrapeWorkers,
		UseBrowser:    cfg.UseBrowser,
		Verbose:       cfg.Verbose,
		Overwrite:     overwrite,
	}
}

// newPipeline wires a pipeline for one run. withEngine controls whether a
// Gemini client is created; stages that never invoke the engine should not
// demand an API key. The returned cleanup closes whatever was opened.
func newPipeline(ctx context.Context, cfg *config.Config, runUID string, overwrite, withEngine bool) (*pipeline.Pipeline, func(), error) {
	p := pipeline.New(runs.NewManager(cfg.BaseDir, runUID), pipelineOptions(cfg, overwrite))

	searchClient := search.NewClient(cfg.SpiderAPIKey)
	if cfg.SearchURL != "" {
		searchClient.BaseURL = cfg.SearchURL
	}
	p.Search = searchClient

	jobs := remotive.NewClient()
	if cfg.RemotiveURL != "" {
		jobs.BaseURL = cfg.RemotiveURL
	}
	p.Jobs = jobs

	p.Scraper = scrape.New(&scrape.Options{
		UseBrowser: cfg.UseBrowser,
		Verbose:    cfg.Verbose,
	})

	var closers []func()
	if withEngine {
		if cfg.GeminiAPIKey == "" {
			return nil, nil, fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
		}
		client, err := llm.NewGeminiClient(ctx, llm.DefaultConfig(), cfg.GeminiAPIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		p.Engine = engine.NewLLMEngine(client)
	}

	// The database mirror is optional; without one the run lives on the
	// filesystem only.
	if cfg.DatabaseURL != "" {
		mirror, err := connectMirror(ctx, cfg.DatabaseURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: database mirror unavailable, continuing without it: %v\n", err)
		} else {
			closers = append(closers, mirror.Close)
			p.Mirror = mirror
		}
	}

	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	return p, cleanup, nil
}

func connectMirror(ctx context.Context, databaseURL string) (*db.DB, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	mirror, err := db.Connect(connectCtx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := mirror.EnsureSchema(connectCtx); err != nil {
		mirror.Close()
		return nil, err
	}
	return mirror, nil
}
