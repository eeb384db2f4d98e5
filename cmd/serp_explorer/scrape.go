package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	scrapeFlags      stageFlags
	exportFinalFlags stageFlags
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape the selected candidate pages",
	Long: `Fetches the content of every selected candidate page with a bounded
worker pool. A page that cannot be scraped yields empty content rather
than failing the batch.`,
	RunE: runScrape,
}

var exportFinalCmd = &cobra.Command{
	Use:   "export-final",
	Short: "Export scraped pages as relevance-scoring input",
	RunE:  runExportFinal,
}

func init() {
	scrapeFlags.register(scrapeCmd)
	exportFinalFlags.register(exportFinalCmd)
	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(exportFinalCmd)
}

func runScrape(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := scrapeFlags.resolve(cmd)
	if err != nil {
		return err
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

	report, err := p.Scrape(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Scraped %d pages, %d empty (%s)\n",
		report.Succeeded, report.Failed, report.OutputPath)
	return nil
}

func runExportFinal(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := exportFinalFlags.resolve(cmd)
	if err != nil {
		return err
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

	report, err := p.ExportFinal(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d relevance-scoring rows (%s)\n", report.Succeeded, report.OutputPath)
	return nil
}
