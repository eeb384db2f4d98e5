// Package server provides the control-panel HTTP API: browse runs, inspect
// stage artifacts and logs, trigger stages, and edit the engine prompt and
// schema documents. It serves storage and orchestration only; any UI is a
// separate frontend.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jonathan/jobserp-explorer/internal/pipeline"
)

// PipelineFactory builds a ready-to-run Pipeline for a run UID. The server
// never constructs collaborators itself; the caller decides which provider,
// engine and scraper a triggered stage uses.
type PipelineFactory func(runUID string) *pipeline.Pipeline

// Config holds server configuration.
type Config struct {
	Port         int
	BaseDir      string
	OverridesDir string
	Factory      PipelineFactory
}

// Server represents the control-panel HTTP server.
type Server struct {
	httpServer   *http.Server
	baseDir      string
	overridesDir string
	factory      PipelineFactory
}

// New creates a new server instance.
func New(cfg Config) (*Server, error) {
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if cfg.Factory == nil {
		return nil, fmt.Errorf("pipeline factory is required")
	}
	if cfg.OverridesDir == "" {
		cfg.OverridesDir = "overrides"
	}

	s := &Server{
		baseDir:      cfg.BaseDir,
		overridesDir: cfg.OverridesDir,
		factory:      cfg.Factory,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // stage triggers can run long
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler builds the router. Exposed so tests can drive the API without a
// listener.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/runs", func(r chi.Router) {
		r.Get("/", s.handleListRuns)
		r.Post("/", s.handleCreateRun)
		r.Route("/{run_uid}", func(r chi.Router) {
			r.Get("/", s.handleGetRun)
			r.Get("/stages", s.handleListStages)
			r.Get("/stages/{stage}/artifact", s.handleStageArtifact)
			r.Get("/stages/{stage}/log", s.handleStageLog)
			r.Post("/stages/{stage}", s.handleTriggerStage)
		})
	})

	r.Get("/prompts/{key}", s.handleGetPrompt)
	r.Put("/prompts/{key}", s.handlePutPrompt)
	r.Get("/schemas/{name}", s.handleGetSchema)
	r.Put("/schemas/{name}", s.handlePutSchema)

	return r
}

// Start begins listening for requests and blocks until an interrupt.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Control panel listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Println("Server stopped")
	return nil
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
