// Package documents tracks which source documents have been indexed.
package documents

import (
	"errors"
	"time"
)

// Status is a document's position in the indexing lifecycle.
type Status string

const (
	StatusUnindexed Status = "unindexed"
	StatusIndexing  Status = "indexing"
	StatusIndexed   Status = "indexed"
	StatusFailed    Status = "failed"
)

// ErrNotFound is returned when a document id is not in the registry.
var ErrNotFound = errors.New("document not found")

// Document is a registry record.
type Document struct {
	ID         string    `json:"document_id"`
	URL        string    `json:"url"`
	Filename   string    `json:"filename"`
	FileSize   int64     `json:"file_size"`
	MIMEType   string    `json:"mime_type"`
	Status     Status    `json:"status"`
	ChunkCount int       `json:"chunk_count"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"upload_time"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Processed reports whether the document is searchable.
func (d *Document) Processed() bool {
	return d.Status == StatusIndexed
}
