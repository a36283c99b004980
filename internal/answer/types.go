package answer

import "github.com/ziadkadry99/doc-qa/internal/ranker"

// StructuredQuery is the intent extracted from a natural-language question.
type StructuredQuery struct {
	Entities []string `json:"entities"`
	Action   string   `json:"action"`
	Context  string   `json:"context"`
	Intent   string   `json:"intent"`
}

// RationaleItem is one passage cited as support for an answer.
type RationaleItem struct {
	Section    string  `json:"section"`
	Excerpt    string  `json:"excerpt"`
	Source     string  `json:"source"`
	Page       int     `json:"page,omitempty"`
	Confidence float64 `json:"confidence"`
}

// QueryResponse is the answer to one question.
type QueryResponse struct {
	Query           string               `json:"query"`
	Result          string               `json:"result"`
	Rationale       []RationaleItem      `json:"rationale"`
	Confidence      float64              `json:"confidence"`
	ProcessingTime  float64              `json:"processing_time"`
	StructuredQuery *StructuredQuery     `json:"structured_query,omitempty"`
	MatchedClauses  []ranker.ClauseMatch `json:"matched_clauses,omitempty"`
}

// Degraded builds the zero-confidence response returned when a stage of
// the pipeline fails.
func Degraded(query, prefix string, err error) *QueryResponse {
	return &QueryResponse{
		Query:     query,
		Result:    prefix + ": " + err.Error(),
		Rationale: []RationaleItem{},
	}
}
