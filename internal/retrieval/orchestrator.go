// Package retrieval ties chunking, embedding, indexing and ranking into the
// ingest and query paths.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ziadkadry99/doc-qa/internal/chunker"
	"github.com/ziadkadry99/doc-qa/internal/embeddings"
	"github.com/ziadkadry99/doc-qa/internal/ranker"
	"github.com/ziadkadry99/doc-qa/internal/vectordb"
)

// ErrNoPassages is returned when a document yields no passages to index.
var ErrNoPassages = errors.New("document produced no passages")

// Result is the outcome of a retrieval: every search result up to k, the
// subset that cleared the threshold, and the query embedding.
type Result struct {
	Results        []vectordb.SearchResult
	Matches        []ranker.ClauseMatch
	QueryEmbedding []float32
}

// Orchestrator runs the ingest and retrieval pipelines over shared handles.
type Orchestrator struct {
	chunker    *chunker.Chunker
	pool       *embeddings.Pool
	index      vectordb.Index
	topK       int
	threshold  float64
	logger     *slog.Logger
	onProgress embeddings.ProgressFunc
}

// Options configures an Orchestrator.
type Options struct {
	TopK      int
	Threshold float64
	Logger    *slog.Logger
}

// New creates an Orchestrator.
func New(c *chunker.Chunker, pool *embeddings.Pool, index vectordb.Index, opts Options) *Orchestrator {
	if opts.TopK <= 0 {
		opts.TopK = vectordb.DefaultTopK
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		chunker:   c,
		pool:      pool,
		index:     index,
		topK:      opts.TopK,
		threshold: opts.Threshold,
		logger:    opts.Logger,
	}
}

// SetProgressFunc sets the callback used while embedding passages.
func (o *Orchestrator) SetProgressFunc(fn embeddings.ProgressFunc) {
	o.onProgress = fn
}

// Threshold returns the configured clause threshold.
func (o *Orchestrator) Threshold() float64 { return o.threshold }

// Embedder returns the shared embedding pool.
func (o *Orchestrator) Embedder() *embeddings.Pool { return o.pool }

// Ingest chunks the pages of documentID, embeds every passage and adds them
// to the index. Nothing is added if chunking or embedding fails.
func (o *Orchestrator) Ingest(ctx context.Context, documentID string, pages []chunker.Page) (int, error) {
	start := time.Now()

	passages, err := o.chunker.Chunk(documentID, pages)
	if err != nil {
		return 0, fmt.Errorf("chunking %s: %w", documentID, err)
	}
	if len(passages) == 0 {
		return 0, ErrNoPassages
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	vectors, err := o.pool.EmbedWithProgress(ctx, texts, o.onProgress)
	if err != nil {
		return 0, fmt.Errorf("embedding %s: %w", documentID, err)
	}

	if err := o.index.Add(ctx, passages, vectors); err != nil {
		return 0, fmt.Errorf("indexing %s: %w", documentID, err)
	}

	o.logger.Info("document indexed",
		slog.String("document_id", documentID),
		slog.Int("pages", len(pages)),
		slog.Int("passages", len(passages)),
		slog.Duration("took", time.Since(start)),
	)
	return len(passages), nil
}

// Retrieve embeds query, searches the k nearest passages (k <= 0 uses the
// configured default) and ranks them against the threshold. A non-empty
// documentID restricts the search to that document.
func (o *Orchestrator) Retrieve(ctx context.Context, query string, k int, documentID string) (*Result, error) {
	return o.RetrieveWithThreshold(ctx, query, k, o.threshold, documentID)
}

// RetrieveWithThreshold is Retrieve with an explicit threshold.
func (o *Orchestrator) RetrieveWithThreshold(ctx context.Context, query string, k int, threshold float64, documentID string) (*Result, error) {
	if k <= 0 {
		k = o.topK
	}
	qv, err := o.pool.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	var filter *vectordb.SearchFilter
	if documentID != "" {
		filter = &vectordb.SearchFilter{DocumentID: documentID}
	}
	results, err := o.index.Search(ctx, qv, k, filter)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	matches := ranker.Rank(results, threshold)
	o.logger.Debug("query retrieved",
		slog.Int("results", len(results)),
		slog.Int("matches", len(matches)),
		slog.String("document_id", documentID),
	)
	return &Result{
		Results:        results,
		Matches:        matches,
		QueryEmbedding: qv,
	}, nil
}

// RemoveDocument drops every passage of documentID from the index.
func (o *Orchestrator) RemoveDocument(ctx context.Context, documentID string) (int, error) {
	n, err := o.index.RemoveDocument(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("removing %s: %w", documentID, err)
	}
	o.logger.Info("document removed", slog.String("document_id", documentID), slog.Int("passages", n))
	return n, nil
}

// DocumentPassages returns how many passages of documentID the index holds.
func (o *Orchestrator) DocumentPassages(documentID string) int {
	return o.index.CountDocument(documentID)
}

// Clear empties the index.
func (o *Orchestrator) Clear(ctx context.Context) error {
	if err := o.index.Clear(ctx); err != nil {
		return fmt.Errorf("clearing index: %w", err)
	}
	o.logger.Info("index cleared")
	return nil
}

// Stats reports index statistics.
func (o *Orchestrator) Stats() vectordb.Stats {
	return o.index.Stats()
}
