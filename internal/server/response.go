package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ziadkadry99/doc-qa/internal/chunker"
	"github.com/ziadkadry99/doc-qa/internal/fetch"
	"github.com/ziadkadry99/doc-qa/internal/qa"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, detail, code string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Detail: detail, ErrorCode: code})
}

// writeServiceError maps service errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, qa.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "Validation error", err.Error(), "VALIDATION_ERROR")
	case errors.Is(err, qa.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, "Document not found", err.Error(), "NOT_FOUND")
	case errors.Is(err, fetch.ErrDownload), errors.Is(err, fetch.ErrUnsupportedURL):
		writeError(w, http.StatusBadRequest, "Document download failed", err.Error(), "DOCUMENT_DOWNLOAD_FAILED")
	case errors.Is(err, fetch.ErrExtraction), errors.Is(err, chunker.ErrNoText):
		writeError(w, http.StatusUnprocessableEntity, "Document processing failed", err.Error(), "DOCUMENT_EXTRACTION_FAILED")
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error", err.Error(), "INTERNAL_ERROR")
	}
}

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Validation error", "Request validation failed: "+err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}
