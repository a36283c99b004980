package vectordb

import (
	"compress/gzip"
	"context"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	vectorsFile  = "vectors.gob.gz"
	metadataFile = "metadata.json"
)

// vectorSnapshot is the on-disk form of the vector matrix, row-major.
type vectorSnapshot struct {
	Dimension int
	Count     int
	Data      []float32
}

// FlatIndex is an exact inner-product index over an in-memory matrix.
// vectors[i] always belongs to passages[i]; both slices are only ever
// changed together under mu.
type FlatIndex struct {
	mu        sync.RWMutex
	dir       string
	dimension int
	vectors   [][]float32
	passages  []Passage
	logger    *slog.Logger

	// encodeMetadata writes the metadata artifact; replaced in tests.
	encodeMetadata func(w io.Writer, passages []Passage) error
}

// NewFlatIndex creates an index persisted under dir and loads any existing
// snapshot. dimension fixes the vector size; 0 adopts the size of the first
// Add. A missing, corrupt or incompatible snapshot is logged and the index
// starts empty.
func NewFlatIndex(dir string, dimension int, logger *slog.Logger) (*FlatIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating index dir: %w", err)
	}
	idx := &FlatIndex{dir: dir, dimension: dimension, logger: logger, encodeMetadata: encodePassages}
	idx.load()
	return idx, nil
}

func (x *FlatIndex) vectorsPath() string  { return filepath.Join(x.dir, vectorsFile) }
func (x *FlatIndex) metadataPath() string { return filepath.Join(x.dir, metadataFile) }

func (x *FlatIndex) load() {
	vecs, dim, err := readVectors(x.vectorsPath())
	if errors.Is(err, os.ErrNotExist) {
		if _, statErr := os.Stat(x.metadataPath()); statErr == nil {
			x.logger.Warn("index metadata without vectors, starting empty", "dir", x.dir)
		}
		return
	}
	if err != nil {
		x.logger.Warn("failed to load index vectors, starting empty", "path", x.vectorsPath(), "error", err)
		return
	}

	passages, err := readPassages(x.metadataPath())
	if err != nil {
		x.logger.Warn("failed to load index metadata, starting empty", "path", x.metadataPath(), "error", err)
		return
	}
	if len(passages) != len(vecs) {
		x.logger.Warn("index snapshot is inconsistent, starting empty",
			"vectors", len(vecs), "passages", len(passages))
		return
	}
	if x.dimension != 0 && dim != x.dimension && len(vecs) > 0 {
		x.logger.Warn("index snapshot has a different dimension, starting empty",
			"snapshot_dimension", dim, "dimension", x.dimension)
		return
	}

	if x.dimension == 0 {
		x.dimension = dim
	}
	x.vectors = vecs
	x.passages = passages
	x.logger.Info("loaded vector index", "passages", len(passages), "dimension", x.dimension)
}

// Add implements Index. On a persistence failure the in-memory state is
// rolled back so it never diverges from disk.
func (x *FlatIndex) Add(ctx context.Context, passages []Passage, vectors [][]float32) error {
	if len(passages) != len(vectors) {
		return fmt.Errorf("%w: %d passages, %d vectors", ErrLengthMismatch, len(passages), len(vectors))
	}
	if len(passages) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	dim := x.dimension
	if dim == 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has %d dimensions, index has %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}

	prevDim, prevLen := x.dimension, len(x.passages)
	x.dimension = dim
	x.vectors = append(x.vectors, vectors...)
	x.passages = append(x.passages, passages...)

	if err := x.persist(); err != nil {
		x.dimension = prevDim
		x.vectors = x.vectors[:prevLen]
		x.passages = x.passages[:prevLen]
		return err
	}
	return nil
}

// Search implements Index with an exact scan. Ties keep insertion order.
func (x *FlatIndex) Search(ctx context.Context, query []float32, k int, filter *SearchFilter) ([]SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if len(x.passages) == 0 {
		return nil, nil
	}
	if len(query) != x.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", ErrDimensionMismatch, len(query), x.dimension)
	}

	results := make([]SearchResult, 0, len(x.passages))
	for i := range x.passages {
		if !filter.matches(&x.passages[i]) {
			continue
		}
		results = append(results, SearchResult{Passage: x.passages[i], Score: dot(query, x.vectors[i])})
	}
	sort.SliceStable(results, func(a, b int) bool { return results[a].Score > results[b].Score })

	return results[:clampK(k, len(results))], nil
}

// RemoveDocument implements Index by rebuilding both slices without the
// document's passages and rewriting the snapshot.
func (x *FlatIndex) RemoveDocument(ctx context.Context, documentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	keptVecs := make([][]float32, 0, len(x.vectors))
	keptPassages := make([]Passage, 0, len(x.passages))
	for i, p := range x.passages {
		if p.DocumentID == documentID {
			continue
		}
		keptVecs = append(keptVecs, x.vectors[i])
		keptPassages = append(keptPassages, p)
	}
	removed := len(x.passages) - len(keptPassages)
	if removed == 0 {
		return 0, nil
	}

	oldVecs, oldPassages := x.vectors, x.passages
	x.vectors, x.passages = keptVecs, keptPassages
	if err := x.persist(); err != nil {
		x.vectors, x.passages = oldVecs, oldPassages
		return 0, err
	}
	return removed, nil
}

// Clear implements Index. Clearing an empty index is a no-op.
func (x *FlatIndex) Clear(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.vectors = nil
	x.passages = nil
	for _, p := range []string{x.vectorsPath(), x.metadataPath()} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", p, err)
		}
	}
	return nil
}

// Stats implements Index. LastUpdated is the snapshot modification time, or
// now when no snapshot exists.
func (x *FlatIndex) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()

	st := Stats{
		TotalEmbeddings: len(x.passages),
		Dimension:       x.dimension,
		LastUpdated:     time.Now(),
	}
	if fi, err := os.Stat(x.vectorsPath()); err == nil {
		st.IndexSize = fi.Size()
	}
	if fi, err := os.Stat(x.metadataPath()); err == nil {
		st.LastUpdated = fi.ModTime()
	}
	return st
}

func (x *FlatIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.passages)
}

func (x *FlatIndex) CountDocument(documentID string) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	n := 0
	for i := range x.passages {
		if x.passages[i].DocumentID == documentID {
			n++
		}
	}
	return n
}

func (x *FlatIndex) Dimension() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dimension
}

// Passages returns a copy of the indexed passages in index order.
func (x *FlatIndex) Passages() []Passage {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]Passage(nil), x.passages...)
}

// persist writes both snapshot files. Both are staged as temp files and
// only renamed into place once both are fully written, so a failed write
// leaves the previous snapshot intact. Caller must hold mu.
func (x *FlatIndex) persist() error {
	snap := vectorSnapshot{Dimension: x.dimension, Count: len(x.vectors)}
	snap.Data = make([]float32, 0, len(x.vectors)*x.dimension)
	for _, v := range x.vectors {
		snap.Data = append(snap.Data, v...)
	}

	vecTmp, err := stage(x.vectorsPath(), func(w io.Writer) error {
		zw := gzip.NewWriter(w)
		if err := gob.NewEncoder(zw).Encode(&snap); err != nil {
			return err
		}
		return zw.Close()
	})
	if err != nil {
		return fmt.Errorf("persisting vectors: %w", err)
	}
	defer os.Remove(vecTmp)

	metaTmp, err := stage(x.metadataPath(), func(w io.Writer) error {
		return x.encodeMetadata(w, x.passages)
	})
	if err != nil {
		return fmt.Errorf("persisting metadata: %w", err)
	}
	defer os.Remove(metaTmp)

	// Metadata goes last: load rejects a vectors/metadata count mismatch, and
	// the metadata file's mtime is reported as LastUpdated.
	if err := os.Rename(vecTmp, x.vectorsPath()); err != nil {
		return fmt.Errorf("persisting vectors: %w", err)
	}
	if err := os.Rename(metaTmp, x.metadataPath()); err != nil {
		return fmt.Errorf("persisting metadata: %w", err)
	}
	return nil
}

func encodePassages(w io.Writer, passages []Passage) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(passages)
}

// stage writes a temp file next to path and returns its name. The caller
// renames it into place or removes it.
func stage(path string, write func(io.Writer) error) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return "", err
	}
	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func readVectors(path string) ([][]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, 0, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer zr.Close()

	var snap vectorSnapshot
	if err := gob.NewDecoder(zr).Decode(&snap); err != nil {
		return nil, 0, fmt.Errorf("decoding vectors: %w", err)
	}
	if snap.Dimension <= 0 && snap.Count > 0 || len(snap.Data) != snap.Count*snap.Dimension {
		return nil, 0, fmt.Errorf("vector snapshot shape %dx%d does not match %d values", snap.Count, snap.Dimension, len(snap.Data))
	}

	vecs := make([][]float32, snap.Count)
	for i := range vecs {
		vecs[i] = snap.Data[i*snap.Dimension : (i+1)*snap.Dimension : (i+1)*snap.Dimension]
	}
	return vecs, snap.Dimension, nil
}

func readPassages(path string) ([]Passage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var passages []Passage
	if err := json.Unmarshal(data, &passages); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return passages, nil
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
