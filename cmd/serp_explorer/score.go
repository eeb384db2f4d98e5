package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	scoreFlags       stageFlags
	exportClassFlags stageFlags
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Label and score SERP hits, then select scrape candidates",
	Long: `Labels every SERP hit's domain (Employer, ATS, tiered aggregator or
Unknown), scores it, and writes both the full scored dataset and the
top-N candidate selection.`,
	RunE: runScore,
}

var exportClassifyCmd = &cobra.Command{
	Use:   "export-classify",
	Short: "Export the candidate selection as classification input",
	RunE:  runExportClassify,
}

func init() {
	scoreFlags.register(scoreCmd)
	exportClassFlags.register(exportClassifyCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(exportClassifyCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := scoreFlags.resolve(cmd)
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

	report, err := p.Score(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Scored %d rows, kept %d candidates (%s)\n",
		report.Attempted, report.Succeeded, report.OutputPath)
	return nil
}

func runExportClassify(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := exportClassFlags.resolve(cmd)
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

	report, err := p.ExportClassify(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Exported %d classification rows (%s)\n", report.Succeeded, report.OutputPath)
	return nil
}
