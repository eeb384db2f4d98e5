package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var fetchSerpsFlags stageFlags

var fetchSerpsCmd = &cobra.Command{
	Use:   "fetch-serps",
	Short: "Fetch SERP results for every query not yet done",
	Long: `Runs the SERP provider over the run's query batch. Queries already in
the done ledger are skipped, so re-invoking after a partial failure only
fetches what is still missing.`,
	RunE: runFetchSerps,
}

func init() {
	fetchSerpsFlags.register(fetchSerpsCmd)
	rootCmd.AddCommand(fetchSerpsCmd)
}

func runFetchSerps(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := fetchSerpsFlags.resolve(cmd)
	if err != nil {
		return err
	}
	if cfg.SpiderAPIKey == "" {
		return fmt.Errorf("SPIDER_API_KEY environment variable or --spider-key flag is required")
	}

	uid, err := resolveRunUID(cfg)
	if err != nil {
		return err
	}
	p, cleanup, err := newPipeline(ctx, cfg, uid, false, false)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := p.FetchSerps(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Fetched SERPs for %d of %d queries (%d skipped, %d failed)\n",
		report.Succeeded, report.Attempted, report.Skipped, report.Failed)
	return nil
}
