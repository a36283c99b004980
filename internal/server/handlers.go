package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/doc-qa/internal/qa"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message":     "Document question answering service",
		"version":     s.cfg.Version,
		"status":      "active",
		"api_version": s.cfg.APIPrefix,
	})
}

func handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "pong",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Health(r.Context()))
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req qa.DocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.svc.ProcessDocumentRequest(r.Context(), req)
	if err != nil {
		s.logger.Error("document request failed", "error", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req qa.QueryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.svc.ProcessQuery(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleClearIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ClearIndex(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Index cleared successfully"})
}

func (s *Server) handleRemoveDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := s.svc.RemoveDocument(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":          "Document " + id + " removed",
		"document_id":      id,
		"passages_removed": n,
	})
}
