package answer

import (
	"context"
	"fmt"

	"github.com/ziadkadry99/doc-qa/internal/embeddings"
	"github.com/ziadkadry99/doc-qa/internal/vectordb"
)

// Attributor decides which retrieved passages support an answer.
type Attributor interface {
	Attribute(ctx context.Context, answer string, results []vectordb.SearchResult) ([]RationaleItem, error)
}

// WordOverlapAttributor cites a passage when it shares at least MinOverlap
// distinct non-stop-words with the answer.
type WordOverlapAttributor struct {
	MinOverlap    int
	ExcerptLength int
}

// Attribute implements Attributor.
func (w WordOverlapAttributor) Attribute(_ context.Context, answer string, results []vectordb.SearchResult) ([]RationaleItem, error) {
	minOverlap := w.MinOverlap
	if minOverlap <= 0 {
		minOverlap = 3
	}
	answerWords := wordSet(answer)

	items := []RationaleItem{}
	for _, r := range results {
		shared := 0
		for word := range wordSet(r.Passage.Text) {
			if _, ok := answerWords[word]; ok {
				shared++
			}
		}
		if shared >= minOverlap {
			items = append(items, rationale(r.Passage, w.ExcerptLength, 0.8))
		}
	}
	return items, nil
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range embeddings.Tokenize(text) {
		set[tok] = struct{}{}
	}
	return set
}

// EmbeddingAttributor cites a passage when the cosine similarity between
// the answer and passage embeddings reaches Threshold. The similarity is
// reported as the item confidence.
type EmbeddingAttributor struct {
	Embedder      embeddings.Embedder
	Threshold     float64
	ExcerptLength int
}

// Attribute implements Attributor.
func (e EmbeddingAttributor) Attribute(ctx context.Context, answer string, results []vectordb.SearchResult) ([]RationaleItem, error) {
	items := []RationaleItem{}
	if len(results) == 0 {
		return items, nil
	}

	texts := make([]string, 0, len(results)+1)
	texts = append(texts, answer)
	for _, r := range results {
		texts = append(texts, r.Passage.Text)
	}
	vecs, err := e.Embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding answer for attribution: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", embeddings.ErrMalformedEmbedding, len(vecs), len(texts))
	}
	for _, v := range vecs {
		if err := embeddings.Normalize(v); err != nil {
			return nil, err
		}
	}

	for i, r := range results {
		sim := embeddings.Dot(vecs[0], vecs[i+1])
		if sim >= e.Threshold {
			items = append(items, rationale(r.Passage, e.ExcerptLength, min(max(sim, 0), 1)))
		}
	}
	return items, nil
}

func rationale(p vectordb.Passage, excerptLen int, confidence float64) RationaleItem {
	if excerptLen <= 0 {
		excerptLen = 300
	}
	source := p.DocumentID
	if source == "" {
		source = "Unknown Document"
	}
	return RationaleItem{
		Section:    sectionOf(p),
		Excerpt:    Excerpt(p.Text, excerptLen),
		Source:     source,
		Page:       p.Page,
		Confidence: confidence,
	}
}
