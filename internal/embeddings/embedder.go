package embeddings

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Embedder defines the interface for generating text embeddings.
type Embedder interface {
	// Embed generates embeddings for one or more texts, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the number of dimensions in the embedding vectors.
	Dimensions() int

	// Name returns the name/identifier of the embedding model.
	Name() string
}

// ErrMalformedEmbedding is returned when a provider yields the wrong number
// of vectors, a vector of the wrong dimension, or one that cannot be
// normalized.
var ErrMalformedEmbedding = errors.New("malformed embedding")

// Normalize scales v in place to unit L2 norm. Zero-length, all-zero and
// non-finite vectors are rejected.
func Normalize(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty vector", ErrMalformedEmbedding)
	}
	var sum float64
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite component", ErrMalformedEmbedding)
		}
		sum += f * f
	}
	if sum == 0 {
		return fmt.Errorf("%w: zero vector", ErrMalformedEmbedding)
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return nil
}

// Dot returns the inner product of a and b. For unit vectors this is the
// cosine similarity.
func Dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var s float64
	for i := 0; i < n; i++ {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
