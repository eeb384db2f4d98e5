package server

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jonathan/jobserp-explorer/internal/pipeline"
	"github.com/jonathan/jobserp-explorer/internal/runs"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type runSummary struct {
	RunUID      string `json:"run_uid"`
	Status      string `json:"status"`
	FailedStage string `json:"failed_stage,omitempty"`
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	uids, err := runs.ListRuns(s.baseDir)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	summaries := make([]runSummary, 0, len(uids))
	for _, uid := range uids {
		manager := runs.NewManager(s.baseDir, uid)
		status, failedStage, err := manager.Status()
		if err != nil {
			status = runs.StatusCreated
		}
		summaries = append(summaries, runSummary{
			RunUID:      uid,
			Status:      string(status),
			FailedStage: failedStage,
		})
	}
	respondJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	uid := runs.NewRunUID(time.Now())
	manager := runs.NewManager(s.baseDir, uid)
	if err := manager.EnsureDirs(); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := manager.SaveMetadata(map[string]any{
		"run_uid":    uid,
		"started_at": time.Now().Format(time.RFC3339),
	}, false); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, runSummary{RunUID: uid, Status: string(runs.StatusCreated)})
}

// manager resolves the run named in the URL, or answers 404.
func (s *Server) manager(w http.ResponseWriter, r *http.Request) (*runs.Manager, bool) {
	uid := chi.URLParam(r, "run_uid")
	manager := runs.NewManager(s.baseDir, uid)
	if _, err := os.Stat(manager.RunDir()); err != nil {
		respondError(w, http.StatusNotFound, "run not found: "+uid)
		return nil, false
	}
	return manager, true
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	manager, ok := s.manager(w, r)
	if !ok {
		return
	}
	meta, err := manager.Metadata()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, meta)
}

type stageInfo struct {
	Stage     string   `json:"stage"`
	Available bool     `json:"available"`
	Artifacts []string `json:"artifacts"`
}

func (s *Server) handleListStages(w http.ResponseWriter, r *http.Request) {
	manager, ok := s.manager(w, r)
	if !ok {
		return
	}
	p := s.factory(manager.RunUID())

	available := map[string]bool{}
	for _, name := range p.AvailableStages() {
		available[name] = true
	}

	infos := make([]stageInfo, 0, len(pipeline.StageOrder))
	for _, name := range pipeline.StageOrder {
		def := pipeline.StageRegistry[name]
		files, err := manager.ListFiles(def.OutputDir, def.OutputExt)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		names := make([]string, 0, len(files))
		for _, f := range files {
			names = append(names, filepath.Base(f))
		}
		infos = append(infos, stageInfo{Stage: name, Available: available[name], Artifacts: names})
	}
	respondJSON(w, http.StatusOK, infos)
}

func (s *Server) handleStageArtifact(w http.ResponseWriter, r *http.Request) {
	manager, ok := s.manager(w, r)
	if !ok {
		return
	}
	stage := chi.URLParam(r, "stage")
	def, known := pipeline.StageRegistry[stage]
	if !known {
		respondError(w, http.StatusNotFound, "unknown stage: "+stage)
		return
	}

	path, err := manager.LatestFile(def.OutputDir, def.OutputExt)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			respondError(w, http.StatusNotFound, "stage has no artifact yet")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	f, err := os.Open(path)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer func() { _ = f.Close() }()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("X-Artifact-Path", filepath.Base(path))
	_, _ = io.Copy(w, f)
}

func (s *Server) handleStageLog(w http.ResponseWriter, r *http.Request) {
	manager, ok := s.manager(w, r)
	if !ok {
		return
	}
	stage := chi.URLParam(r, "stage")
	if _, known := pipeline.StageRegistry[stage]; !known {
		respondError(w, http.StatusNotFound, "unknown stage: "+stage)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(manager.ReadLog(stage)))
}

func (s *Server) handleTriggerStage(w http.ResponseWriter, r *http.Request) {
	manager, ok := s.manager(w, r)
	if !ok {
		return
	}
	stage := chi.URLParam(r, "stage")
	if _, known := pipeline.StageRegistry[stage]; !known {
		respondError(w, http.StatusNotFound, "unknown stage: "+stage)
		return
	}

	p := s.factory(manager.RunUID())
	report, err := p.InvokeStage(r.Context(), stage)
	if err != nil {
		var depErr *pipeline.DependencyError
		if errors.As(err, &depErr) {
			respondError(w, http.StatusConflict, depErr.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}
