package embeddings

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)

// StopWords are ignored by the hashing embedder and by word-overlap
// attribution.
var StopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "it": {}, "this": {}, "that": {}, "as": {},
	"if": {}, "any": {}, "do": {}, "does": {}, "what": {}, "which": {},
}

// Tokenize lowercases text and returns its word tokens with stop words
// removed.
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if _, stop := StopWords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// HashEmbedder is an offline bag-of-words embedder that hashes each token
// into one of a fixed number of buckets. Texts sharing vocabulary get
// similar vectors; it needs no model and is fully deterministic.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder creates a hashing embedder with the given dimension.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

func (e *HashEmbedder) Name() string {
	return "hash"
}

func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *HashEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dimensions)
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		// Stop-word-only text still gets a stable direction.
		if t := strings.TrimSpace(strings.ToLower(text)); t != "" {
			tokens = []string{t}
		}
	}
	for _, tok := range tokens {
		v[bucket(tok, e.dimensions)]++
	}
	// Empty text stays a zero vector and is rejected by Normalize.
	_ = Normalize(v)
	return v
}

func bucket(token string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return int(h.Sum32() % uint32(n))
}
