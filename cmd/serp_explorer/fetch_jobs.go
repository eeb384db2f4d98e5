package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/jobserp-explorer/internal/runs"
)

var (
	fetchJobsFlags stageFlags
	fetchJobsQuery string
	fetchJobsLimit int
	fetchJobsInput string
)

var fetchJobsCmd = &cobra.Command{
	Use:   "fetch-jobs",
	Short: "Start a run by seeding its query batch",
	Long: `Starts a new run and writes its query CSV, either by searching the
remote-jobs listing API (--query) or by importing a prepared CSV (--input).`,
	RunE: runFetchJobs,
}

func init() {
	fetchJobsFlags.register(fetchJobsCmd)
	fetchJobsCmd.Flags().StringVarP(&fetchJobsQuery, "query", "q", "", "Job board search query (mutually exclusive with --input)")
	fetchJobsCmd.Flags().IntVar(&fetchJobsLimit, "limit", 0, "Maximum job listings to fetch")
	fetchJobsCmd.Flags().StringVar(&fetchJobsInput, "input", "", "Path to a prepared query CSV (mutually exclusive with --query)")
	rootCmd.AddCommand(fetchJobsCmd)
}

func runFetchJobs(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := fetchJobsFlags.resolve(cmd)
	if err != nil {
		return err
	}
	if cfg.Input == "" {
		cfg.Input = fetchJobsInput
	}
	if fetchJobsQuery == "" && cfg.Input == "" {
		return fmt.Errorf("either --query or --input must be provided (via flag or config)")
	}
	if fetchJobsQuery != "" && cfg.Input != "" {
		return fmt.Errorf("--query and --input are mutually exclusive; provide only one")
	}

	uid := cfg.RunUID
	if uid == "" {
		uid = runs.NewRunUID(time.Now())
	}

	p, cleanup, err := newPipeline(ctx, cfg, uid, false, false)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.Input != "" {
		path, err := p.ImportQueries(cfg.Input)
		if err != nil {
			return err
		}
		fmt.Printf("Run %s created with queries from %s\n", uid, path)
		return nil
	}

	report, err := p.FetchJobs(ctx, fetchJobsQuery, fetchJobsLimit)
	if err != nil {
		return err
	}
	fmt.Printf("Run %s created with %d queries (%s)\n", uid, report.Succeeded, report.OutputPath)
	return nil
}
