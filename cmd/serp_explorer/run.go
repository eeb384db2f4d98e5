package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/jobserp-explorer/internal/pipeline"
	"github.com/jonathan/jobserp-explorer/internal/runs"
)

var (
	runFlags     stageFlags
	runQuery     string
	runLimit     int
	runInput     string
	runOverwrite bool
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run the full qualification pipeline end-to-end",
	Long: `Sequences every stage from queries to the merged results dataset:
fetch-serps -> score -> export-classify -> classify -> scrape ->
export-final -> final-score -> merge.

Stages whose output already exists are skipped, so pointing --run at a
failed run resumes it from its last checkpoint.`,
	RunE: runPipelineCmd,
}

func init() {
	runFlags.register(runCommand)
	runCommand.Flags().StringVarP(&runQuery, "query", "q", "", "Job board search query to seed a new run")
	runCommand.Flags().IntVar(&runLimit, "limit", 0, "Maximum job listings to fetch")
	runCommand.Flags().StringVar(&runInput, "input", "", "Path to a prepared query CSV to seed a new run")
	runCommand.Flags().BoolVar(&runOverwrite, "overwrite", false, "Replace an existing results dataset")
	rootCmd.AddCommand(runCommand)
}

func runPipelineCmd(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := runFlags.resolve(cmd)
	if err != nil {
		return err
	}
	if cfg.Input == "" {
		cfg.Input = runInput
	}
	if cfg.SpiderAPIKey == "" {
		return fmt.Errorf("SPIDER_API_KEY environment variable or --spider-key flag is required")
	}

	uid := cfg.RunUID
	if uid == "" {
		uid = runs.NewRunUID(time.Now())
	}

	p, cleanup, err := newPipeline(ctx, cfg, uid, runOverwrite, true)
	if err != nil {
		return err
	}
	defer cleanup()

	p.Opts.OnProgress = func(event pipeline.ProgressEvent) {
		fmt.Printf("[%s] %s\n", event.Stage, event.Message)
	}

	start := time.Now()
	if err := p.Run(ctx, pipeline.RunInput{
		QueryCSV:      cfg.Input,
		RemotiveQuery: runQuery,
		Limit:         runLimit,
	}); err != nil {
		return err
	}

	fmt.Printf("Run %s complete in %s\n", uid, time.Since(start).Round(time.Second))
	return nil
}
