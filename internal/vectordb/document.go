package vectordb

import "time"

// Passage is an immutable unit of document text that is embedded and
// indexed. Passages are created at ingest and never mutated; they leave the
// index only through Clear or RemoveDocument.
type Passage struct {
	ID         string            `json:"chunk_id"`
	DocumentID string            `json:"document_id"`
	Text       string            `json:"text"`
	Page       int               `json:"page,omitempty"`
	Section    string            `json:"section"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// SearchResult pairs a passage with its similarity to the query.
type SearchResult struct {
	Passage Passage
	Score   float32
}

// SearchFilter narrows a search to passages matching every set field.
type SearchFilter struct {
	DocumentID string
}

func (f *SearchFilter) matches(p *Passage) bool {
	return f == nil || f.DocumentID == "" || p.DocumentID == f.DocumentID
}

// Stats describes the state of an index and its snapshot.
type Stats struct {
	TotalEmbeddings int       `json:"total_embeddings"`
	Dimension       int       `json:"dimension"`
	IndexSize       int64     `json:"index_size"`
	LastUpdated     time.Time `json:"last_updated"`
}
