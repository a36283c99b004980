package vectordb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/doc-qa/internal/embeddings"
)

const (
	collectionName = "passages"
	chromemFile    = "chromem.gob.gz"
)

// ChromemIndex implements Index on a chromem-go collection. Vectors are
// computed by the caller and passed in precomputed. Passages are keyed by
// their ID, so re-adding an ID replaces the earlier entry, and results
// with equal scores have no guaranteed order.
type ChromemIndex struct {
	mu         sync.RWMutex
	dir        string
	dimension  int
	db         *chromem.DB
	collection *chromem.Collection
	embedFunc  chromem.EmbeddingFunc
	logger     *slog.Logger
}

// NewChromemIndex opens (or creates) a chromem collection persisted under
// dir. The embedder backs chromem's text queries; Search itself always uses
// the supplied query vector.
func NewChromemIndex(dir string, embedder embeddings.Embedder, logger *slog.Logger) (*ChromemIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating index dir: %w", err)
	}

	x := &ChromemIndex{
		dir:       dir,
		dimension: embedder.Dimensions(),
		db:        chromem.NewDB(),
		embedFunc: embeddings.ToChromemFunc(embedder),
		logger:    logger,
	}

	if _, err := os.Stat(x.path()); err == nil {
		if err := x.db.ImportFromFile(x.path(), ""); err != nil {
			logger.Warn("failed to import chromem snapshot, starting empty", "path", x.path(), "error", err)
			x.db = chromem.NewDB()
		}
	}

	col, err := x.db.GetOrCreateCollection(collectionName, nil, x.embedFunc)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	x.collection = col
	if n := col.Count(); n > 0 {
		logger.Info("loaded chromem index", "passages", n)
	}
	return x, nil
}

func (x *ChromemIndex) path() string { return filepath.Join(x.dir, chromemFile) }

func (x *ChromemIndex) Add(ctx context.Context, passages []Passage, vectors [][]float32) error {
	if len(passages) != len(vectors) {
		return fmt.Errorf("%w: %d passages, %d vectors", ErrLengthMismatch, len(passages), len(vectors))
	}
	if len(passages) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(passages))
	for i, p := range passages {
		if x.dimension != 0 && len(vectors[i]) != x.dimension {
			return fmt.Errorf("%w: vector %d has %d dimensions, index has %d", ErrDimensionMismatch, i, len(vectors[i]), x.dimension)
		}
		docs[i] = chromem.Document{
			ID:        p.ID,
			Content:   p.Text,
			Metadata:  passageToMap(p),
			Embedding: vectors[i],
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("chromem add: %w", err)
	}
	return x.persist()
}

func (x *ChromemIndex) Search(ctx context.Context, query []float32, k int, filter *SearchFilter) ([]SearchResult, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	count := x.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if x.dimension != 0 && len(query) != x.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(query), x.dimension)
	}

	var where map[string]string
	if filter != nil && filter.DocumentID != "" {
		where = map[string]string{"document_id": filter.DocumentID}
	}

	// chromem-go requires nResults <= number of matching documents.
	limit := clampK(k, count)
	results, err := x.collection.QueryEmbedding(ctx, query, limit, where, nil)
	if err != nil && where != nil {
		results, err = x.queryFiltered(ctx, query, limit, where)
	}
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{Passage: mapToPassage(r.ID, r.Content, r.Metadata), Score: r.Similarity}
	}
	return out, nil
}

// queryFiltered retries a filtered query with a limit that fits the
// number of passages the filter matches.
func (x *ChromemIndex) queryFiltered(ctx context.Context, query []float32, limit int, where map[string]string) ([]chromem.Result, error) {
	all, err := x.collection.QueryEmbedding(ctx, query, x.collection.Count(), nil, nil)
	if err != nil {
		return nil, err
	}
	var out []chromem.Result
	for _, r := range all {
		if r.Metadata["document_id"] == where["document_id"] {
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (x *ChromemIndex) RemoveDocument(ctx context.Context, documentID string) (int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	before := x.collection.Count()
	if err := x.collection.Delete(ctx, map[string]string{"document_id": documentID}, nil); err != nil {
		return 0, fmt.Errorf("chromem delete: %w", err)
	}
	removed := before - x.collection.Count()
	if removed == 0 {
		return 0, nil
	}
	return removed, x.persist()
}

func (x *ChromemIndex) Clear(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("chromem delete collection: %w", err)
	}
	col, err := x.db.GetOrCreateCollection(collectionName, nil, x.embedFunc)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	x.collection = col

	if err := os.Remove(x.path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", x.path(), err)
	}
	return nil
}

func (x *ChromemIndex) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()

	st := Stats{
		TotalEmbeddings: x.collection.Count(),
		Dimension:       x.dimension,
		LastUpdated:     time.Now(),
	}
	if fi, err := os.Stat(x.path()); err == nil {
		st.IndexSize = fi.Size()
		st.LastUpdated = fi.ModTime()
	}
	return st
}

func (x *ChromemIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.collection.Count()
}

// CountDocument counts the passages whose document_id metadata matches.
func (x *ChromemIndex) CountDocument(documentID string) int {
	x.mu.RLock()
	defer x.mu.RUnlock()

	count := x.collection.Count()
	if count == 0 || x.dimension == 0 {
		return 0
	}
	axis := make([]float32, x.dimension)
	axis[0] = 1
	results, err := x.collection.QueryEmbedding(context.Background(), axis, count, nil, nil)
	if err != nil {
		x.logger.Warn("chromem count failed", "document_id", documentID, "error", err)
		return 0
	}
	n := 0
	for _, r := range results {
		if r.Metadata["document_id"] == documentID {
			n++
		}
	}
	return n
}

func (x *ChromemIndex) Dimension() int {
	return x.dimension
}

// persist exports the whole DB. Caller must hold mu.
func (x *ChromemIndex) persist() error {
	if err := x.db.ExportToFile(x.path(), true, ""); err != nil {
		return fmt.Errorf("persisting chromem index: %w", err)
	}
	return nil
}

// passageToMap flattens a passage into chromem's string metadata.
func passageToMap(p Passage) map[string]string {
	md := make(map[string]string, len(p.Metadata)+3)
	for k, v := range p.Metadata {
		md["meta."+k] = v
	}
	md["document_id"] = p.DocumentID
	md["section"] = p.Section
	md["page"] = strconv.Itoa(p.Page)
	return md
}

func mapToPassage(id, text string, md map[string]string) Passage {
	page, _ := strconv.Atoi(md["page"])
	p := Passage{
		ID:         id,
		DocumentID: md["document_id"],
		Text:       text,
		Page:       page,
		Section:    md["section"],
	}
	for k, v := range md {
		if len(k) > 5 && k[:5] == "meta." {
			if p.Metadata == nil {
				p.Metadata = make(map[string]string)
			}
			p.Metadata[k[5:]] = v
		}
	}
	return p
}
