// Package main provides the entry point for the SERP explorer CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "serp_explorer",
	Short: "Job SERP qualification pipeline",
	Long:  "serp_explorer turns a batch of job queries into a qualified set of authoritative job posting pages: fetch SERPs, score and tier the hits, classify pages with an LLM, scrape the survivors and merge the judgments into a results dataset.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
