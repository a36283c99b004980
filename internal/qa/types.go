package qa

import (
	"time"

	"github.com/ziadkadry99/doc-qa/internal/answer"
	"github.com/ziadkadry99/doc-qa/internal/documents"
	"github.com/ziadkadry99/doc-qa/internal/vectordb"
)

// DocumentRequest asks questions about the document at Documents (a URL).
type DocumentRequest struct {
	Documents string   `json:"documents"`
	Questions []string `json:"questions"`
}

// DocumentResponse carries one answer per question, in question order.
type DocumentResponse struct {
	Answers           []string                `json:"answers"`
	DetailedResponses []*answer.QueryResponse `json:"detailed_responses,omitempty"`
	DocumentID        string                  `json:"document_id"`
	ProcessingTime    float64                 `json:"processing_time"`
}

// QueryRequest asks a single question, optionally about one document.
type QueryRequest struct {
	Query      string `json:"query"`
	DocumentID string `json:"document_id,omitempty"`
}

// HealthResponse reports the state of each component.
type HealthResponse struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Version    string            `json:"version"`
	Components map[string]string `json:"components"`
}

// StatsResponse summarizes the index, the registry and the query log.
type StatsResponse struct {
	Embeddings vectordb.Stats           `json:"embeddings"`
	Documents  map[documents.Status]int `json:"documents"`
	Queries    int                      `json:"queries"`
	Timestamp  time.Time                `json:"timestamp"`
}

// Component states used in HealthResponse.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)
