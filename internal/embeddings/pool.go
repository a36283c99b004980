package embeddings

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ProgressFunc is called after each batch with the number of texts embedded
// so far and the total. It may be called from several goroutines.
type ProgressFunc func(done, total int)

// Pool embeds texts in batches on a bounded set of workers. The worker slots
// are shared by every caller of the same Pool, so concurrent requests never
// exceed the configured parallelism. Output order always matches input
// order, and every returned vector is validated and L2-normalized.
type Pool struct {
	embedder  Embedder
	slots     chan struct{}
	batchSize int
}

// NewPool wraps e with workers concurrent slots and the given batch size.
func NewPool(e Embedder, workers, batchSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 32
	}
	return &Pool{
		embedder:  e,
		slots:     make(chan struct{}, workers),
		batchSize: batchSize,
	}
}

func (p *Pool) Name() string {
	return p.embedder.Name()
}

func (p *Pool) Dimensions() int {
	return p.embedder.Dimensions()
}

// Embed implements Embedder.
func (p *Pool) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return p.EmbedWithProgress(ctx, texts, nil)
}

// EmbedQuery embeds a single text.
func (p *Pool) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedWithProgress embeds texts, reporting progress after each batch.
// Any batch failure cancels the remaining batches and no partial result
// is returned.
func (p *Pool) EmbedWithProgress(ctx context.Context, texts []string, progress ProgressFunc) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	dim := p.embedder.Dimensions()
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
dispatch:
	for start := 0; start < len(texts); start += p.batchSize {
		start, end := start, min(start+p.batchSize, len(texts))

		select {
		case p.slots <- struct{}{}:
		case <-gctx.Done():
			break dispatch
		}

		g.Go(func() error {
			defer func() { <-p.slots }()

			batch := texts[start:end]
			vecs, err := p.embedder.Embed(gctx, batch)
			if err != nil {
				return fmt.Errorf("embedding texts %d-%d: %w", start, end-1, err)
			}
			if len(vecs) != len(batch) {
				return fmt.Errorf("%w: %s returned %d vectors for %d texts", ErrMalformedEmbedding, p.embedder.Name(), len(vecs), len(batch))
			}
			for i, v := range vecs {
				if dim > 0 && len(v) != dim {
					return fmt.Errorf("%w: text %d has dimension %d, expected %d", ErrMalformedEmbedding, start+i, len(v), dim)
				}
				if err := Normalize(v); err != nil {
					return fmt.Errorf("text %d: %w", start+i, err)
				}
				out[start+i] = v
			}

			n := done.Add(int64(len(batch)))
			if progress != nil {
				progress(int(n), len(texts))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
