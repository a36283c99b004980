package embeddings

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
)

// ToChromemFunc converts an Embedder into a chromem.EmbeddingFunc.
// chromem-go expects a function that embeds a single text at a time; the
// result is normalized because chromem assumes unit vectors.
func ToChromemFunc(e Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		results, err := e.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(results) != 1 {
			return nil, fmt.Errorf("%w: %s returned %d vectors for 1 text", ErrMalformedEmbedding, e.Name(), len(results))
		}
		v := results[0]
		if err := Normalize(v); err != nil {
			return nil, err
		}
		return v, nil
	}
}
