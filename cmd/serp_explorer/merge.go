package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	mergeFlags     stageFlags
	mergeOverwrite bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge page judgments with scraped content into the results dataset",
	Long: `Joins the pages judged to be job postings with their scraped content
and writes the run's results dataset. Completing the merge marks the run
COMPLETE. An existing results dataset is only replaced with --overwrite.`,
	RunE: runMerge,
}

func init() {
	mergeFlags.register(mergeCmd)
	mergeCmd.Flags().BoolVar(&mergeOverwrite, "overwrite", false, "Replace an existing results dataset")
	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := mergeFlags.resolve(cmd)
	if err != nil {
		return err
	}
	uid, err := resolveRunUID(cfg)
	if err != nil {
		return err
	}
	p, cleanup, err := newPipeline(ctx, cfg, uid, mergeOverwrite, false)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := p.Merge(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Merged %d job postings out of %d judgments (%s)\n",
		report.Succeeded, report.Attempted, report.OutputPath)
	return nil
}
