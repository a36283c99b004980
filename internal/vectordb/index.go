package vectordb

import (
	"context"
	"errors"
)

// DefaultTopK is the number of results returned when a caller passes k <= 0.
const DefaultTopK = 10

var (
	// ErrLengthMismatch is returned by Add when passages and vectors differ
	// in length.
	ErrLengthMismatch = errors.New("passages and vectors length mismatch")
	// ErrDimensionMismatch is returned when a vector does not match the
	// index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Index stores passage vectors and answers nearest-neighbour queries.
// Implementations persist synchronously inside every mutating call and
// serialize all operations.
type Index interface {
	// Add appends passages with their vectors, which must be unit length.
	Add(ctx context.Context, passages []Passage, vectors [][]float32) error

	// Search returns up to k passages most similar to query, best first.
	Search(ctx context.Context, query []float32, k int, filter *SearchFilter) ([]SearchResult, error)

	// RemoveDocument drops every passage of documentID and returns how many
	// were removed.
	RemoveDocument(ctx context.Context, documentID string) (int, error)

	// Clear removes all entries and the on-disk snapshot.
	Clear(ctx context.Context) error

	// Stats reports size and snapshot information.
	Stats() Stats

	// Count returns the number of indexed passages.
	Count() int

	// CountDocument returns the number of indexed passages of documentID.
	CountDocument(documentID string) int

	// Dimension returns the vector dimension, or 0 before the first Add.
	Dimension() int
}

func clampK(k, count int) int {
	if k <= 0 {
		k = DefaultTopK
	}
	if k > count {
		k = count
	}
	return k
}
