package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/jobserp-explorer/internal/config"
	"github.com/jonathan/jobserp-explorer/internal/pipeline"
	"github.com/jonathan/jobserp-explorer/internal/server"
)

var (
	serveFlags     stageFlags
	servePort      int
	serveOverrides string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the control-panel HTTP API",
	Long: `Starts an HTTP server for browsing runs, inspecting stage artifacts
and logs, triggering stages, and editing the engine prompt and schema
documents.`,
	RunE: runServe,
}

func init() {
	serveFlags.register(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&serveOverrides, "overrides", "overrides", "Directory holding prompt and schema overrides")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := serveFlags.resolve(cmd)
	if err != nil {
		return err
	}

	// One engine client serves every triggered stage; the factory only
	// rebinds the run.
	factory, cleanup, err := newFactory(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	srv, err := server.New(server.Config{
		Port:         servePort,
		BaseDir:      cfg.BaseDir,
		OverridesDir: serveOverrides,
		Factory:      factory,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Start()
}

func newFactory(ctx context.Context, cfg *config.Config) (server.PipelineFactory, func(), error) {
	template, cleanup, err := newPipeline(ctx, cfg, "", false, cfg.GeminiAPIKey != "")
	if err != nil {
		return nil, nil, err
	}

	// Per-run pipelines share the template's engine and mirror instead of
	// opening their own connections on every request.
	perRun := *cfg
	perRun.DatabaseURL = ""

	factory := func(runUID string) *pipeline.Pipeline {
		p, _, err := newPipeline(ctx, &perRun, runUID, false, false)
		if err != nil {
			return nil
		}
		p.Engine = template.Engine
		p.Mirror = template.Mirror
		return p
	}
	return factory, cleanup, nil
}
