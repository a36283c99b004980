// Package history records answered queries.
package history

import "time"

// Entry is one answered query.
type Entry struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	DocumentID   string    `json:"document_id,omitempty"`
	Query        string    `json:"query"`
	Answer       string    `json:"answer"`
	Confidence   float64   `json:"confidence"`
	MatchCount   int       `json:"match_count"`
	ProcessingMS int64     `json:"processing_ms"`
}
