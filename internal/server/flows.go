package server

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/jonathan/jobserp-explorer/internal/prompts"
	"github.com/jonathan/jobserp-explorer/internal/schemas"
)

// maxDocumentBytes bounds an uploaded prompt or schema document.
const maxDocumentBytes = 1 << 20

// Prompt and schema documents ship embedded in the binary; the control
// panel stores edited copies under the overrides directory and serves the
// override when one exists.

func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	embedded, err := prompts.Get("flows.json", key)
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown prompt: "+key)
		return
	}

	body := embedded
	source := "embedded"
	if data, err := os.ReadFile(s.overridePath("prompts", key+".txt")); err == nil {
		body = string(data)
		source = "override"
	}
	respondJSON(w, http.StatusOK, map[string]string{"key": key, "source": source, "template": body})
}

func (s *Server) handlePutPrompt(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if _, err := prompts.Get("flows.json", key); err != nil {
		respondError(w, http.StatusNotFound, "unknown prompt: "+key)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes))
	if err != nil || len(body) == 0 {
		respondError(w, http.StatusBadRequest, "empty prompt body")
		return
	}
	if err := s.writeOverride("prompts", key+".txt", body); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"key": key, "source": "override"})
}

func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	embedded, err := schemas.Schema(name)
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown schema: "+name)
		return
	}

	body := embedded
	if data, err := os.ReadFile(s.overridePath("schemas", name)); err == nil {
		body = string(data)
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func (s *Server) handlePutSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := schemas.Schema(name); err != nil {
		respondError(w, http.StatusNotFound, "unknown schema: "+name)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read schema body")
		return
	}
	if !json.Valid(body) {
		respondError(w, http.StatusBadRequest, "schema must be valid JSON")
		return
	}
	if err := s.writeOverride("schemas", name, body); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"name": name, "source": "override"})
}

func (s *Server) overridePath(kind, name string) string {
	return filepath.Join(s.overridesDir, kind, name)
}

func (s *Server) writeOverride(kind, name string, body []byte) error {
	path := s.overridePath(kind, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o644)
}
