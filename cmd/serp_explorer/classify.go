package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	classifyFlags   stageFlags
	finalScoreFlags stageFlags
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Categorize candidate pages with the LLM engine",
	Long: `Runs the page categorization flow over the exported classification
input. Responses that fail schema validation are quarantined; the stage
fails only when no row yields a valid judgment.`,
	RunE: runClassify,
}

var finalScoreCmd = &cobra.Command{
	Use:   "final-score",
	Short: "Judge scraped pages for relevance with the LLM engine",
	RunE:  runFinalScore,
}

func init() {
	classifyFlags.register(classifyCmd)
	finalScoreFlags.register(finalScoreCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(finalScoreCmd)
}

func runClassify(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := classifyFlags.resolve(cmd)
	if err != nil {
		return err
	}
	uid, err := resolveRunUID(cfg)
	if err != nil {
		return err
	}
	p, cleanup, err := newPipeline(ctx, cfg, uid, false, true)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := p.Classify(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Classified %d of %d pages (%d quarantined)\n",
		report.Succeeded, report.Attempted, report.Failed)
	return nil
}

func runFinalScore(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := finalScoreFlags.resolve(cmd)
	if err != nil {
		return err
	}
	uid, err := resolveRunUID(cfg)
	if err != nil {
		return err
	}
	p, cleanup, err := newPipeline(ctx, cfg, uid, false, true)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := p.FinalScore(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Scored %d of %d pages (%d quarantined)\n",
		report.Succeeded, report.Attempted, report.Failed)
	return nil
}
