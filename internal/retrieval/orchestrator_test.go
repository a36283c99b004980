package retrieval

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/doc-qa/internal/chunker"
	"github.com/ziadkadry99/doc-qa/internal/embeddings"
	"github.com/ziadkadry99/doc-qa/internal/logging"
	"github.com/ziadkadry99/doc-qa/internal/vectordb"
)

const dim = 384

var policyPages = []chunker.Page{
	{Number: 1, Text: "COVERAGE\nThe policy covers maternity expenses after a waiting period of 24 months. Maternity benefits include delivery and newborn care charges."},
	{Number: 2, Text: "EXCLUSIONS\nCosmetic surgery is excluded unless required due to an accident. Cosmetic procedures for beautification are never covered."},
}

func newOrchestrator(t *testing.T, threshold float64) (*Orchestrator, *vectordb.FlatIndex) {
	t.Helper()
	index, err := vectordb.NewFlatIndex(t.TempDir(), dim, logging.Discard())
	require.NoError(t, err)
	pool := embeddings.NewPool(embeddings.NewHashEmbedder(dim), 2, 4)
	o := New(chunker.New(chunker.DefaultOptions()), pool, index, Options{
		TopK:      10,
		Threshold: threshold,
		Logger:    logging.Discard(),
	})
	return o, index
}

func TestIngestAndRetrieve(t *testing.T) {
	ctx := context.Background()
	o, index := newOrchestrator(t, 0.5)

	n, err := o.Ingest(ctx, "doc1", policyPages)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, index.Count())

	res, err := o.Retrieve(ctx, "maternity waiting period", 0, "")
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Len(t, res.QueryEmbedding, dim)
	assert.Equal(t, 1, res.Results[0].Passage.Page)
	assert.Contains(t, res.Results[0].Passage.Text, "maternity")
	assert.GreaterOrEqual(t, res.Results[0].Score, res.Results[1].Score)

	for _, m := range res.Matches {
		assert.GreaterOrEqual(t, m.SimilarityScore, 0.5)
		assert.NotContains(t, m.ClauseText, "Cosmetic")
	}

	res, err = o.Retrieve(ctx, "cosmetic surgery", 1, "")
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, 2, res.Results[0].Passage.Page)
	assert.Equal(t, "EXCLUSIONS", res.Results[0].Passage.Section)
}

// topicEmbedder places text on one axis per topic word it mentions, plus a
// small constant axis so no vector is zero.
type topicEmbedder struct{}

var topics = []string{"matern", "cover", "cosmetic", "exclu"}

func (topicEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		v := make([]float32, len(topics)+1)
		v[len(topics)] = 0.1
		var norm float64
		for j, topic := range topics {
			if strings.Contains(lower, topic) {
				v[j] = 1
			}
		}
		for _, x := range v {
			norm += float64(x * x)
		}
		for j := range v {
			v[j] /= float32(math.Sqrt(norm))
		}
		out[i] = v
	}
	return out, nil
}

func (topicEmbedder) Dimensions() int { return len(topics) + 1 }
func (topicEmbedder) Name() string    { return "topic" }

func TestMaternityScenarioAtDefaultThreshold(t *testing.T) {
	ctx := context.Background()
	index, err := vectordb.NewFlatIndex(t.TempDir(), topicEmbedder{}.Dimensions(), logging.Discard())
	require.NoError(t, err)
	o := New(chunker.New(chunker.DefaultOptions()), embeddings.NewPool(topicEmbedder{}, 1, 4), index, Options{
		TopK:      10,
		Threshold: 0.7,
		Logger:    logging.Discard(),
	})

	n, err := o.Ingest(ctx, "policy", []chunker.Page{
		{Number: 1, Text: "COVERAGE\nMaternity expenses are covered after 24 months."},
		{Number: 2, Text: "EXCLUSIONS\nCosmetic surgery is excluded."},
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	res, err := o.Retrieve(ctx, "Is maternity covered?", 0, "")
	require.NoError(t, err)
	require.Len(t, res.Results, 2)

	scores := map[int]float32{}
	for _, r := range res.Results {
		scores[r.Passage.Page] = r.Score
	}
	assert.Greater(t, scores[1], scores[2])

	require.NotEmpty(t, res.Matches)
	assert.Equal(t, 1, res.Matches[0].PageNumber)
	assert.Equal(t, "COVERAGE", res.Matches[0].Section)
	assert.Contains(t, res.Matches[0].ClauseText, "Maternity expenses are covered after 24 months")
	for _, m := range res.Matches {
		assert.GreaterOrEqual(t, m.SimilarityScore, 0.7)
		assert.NotEqual(t, 2, m.PageNumber, "the exclusion clause scores below 0.7")
	}
}

func TestRetrieveDeterministic(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrchestrator(t, 0)
	_, err := o.Ingest(ctx, "doc1", policyPages)
	require.NoError(t, err)

	a, err := o.Retrieve(ctx, "what is excluded", 5, "")
	require.NoError(t, err)
	b, err := o.Retrieve(ctx, "what is excluded", 5, "")
	require.NoError(t, err)
	assert.Equal(t, a.Results, b.Results)
	assert.Equal(t, a.Matches, b.Matches)
}

func TestRetrieveDocumentFilter(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrchestrator(t, 0)
	_, err := o.Ingest(ctx, "doc1", policyPages[:1])
	require.NoError(t, err)
	_, err = o.Ingest(ctx, "doc2", policyPages[1:])
	require.NoError(t, err)

	res, err := o.Retrieve(ctx, "maternity", 10, "doc2")
	require.NoError(t, err)
	require.NotEmpty(t, res.Results)
	for _, r := range res.Results {
		assert.Equal(t, "doc2", r.Passage.DocumentID)
	}
}

func TestRetrieveEmptyIndex(t *testing.T) {
	o, _ := newOrchestrator(t, 0.7)
	res, err := o.Retrieve(context.Background(), "anything", 0, "")
	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Empty(t, res.Matches)
}

func TestIngestNoText(t *testing.T) {
	o, index := newOrchestrator(t, 0.7)
	_, err := o.Ingest(context.Background(), "doc1", []chunker.Page{{Number: 1, Text: "   "}})
	assert.ErrorIs(t, err, chunker.ErrNoText)
	assert.Equal(t, 0, index.Count())
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("provider down")
}
func (failingEmbedder) Dimensions() int { return dim }
func (failingEmbedder) Name() string    { return "failing" }

func TestIngestEmbeddingFailureAddsNothing(t *testing.T) {
	index, err := vectordb.NewFlatIndex(t.TempDir(), dim, logging.Discard())
	require.NoError(t, err)
	o := New(chunker.New(chunker.DefaultOptions()), embeddings.NewPool(failingEmbedder{}, 1, 8), index, Options{Logger: logging.Discard()})

	_, err = o.Ingest(context.Background(), "doc1", policyPages)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")
	assert.Equal(t, 0, index.Count())
}

func TestRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	o, index := newOrchestrator(t, 0)
	_, err := o.Ingest(ctx, "doc1", policyPages[:1])
	require.NoError(t, err)
	_, err = o.Ingest(ctx, "doc2", policyPages[1:])
	require.NoError(t, err)

	n, err := o.RemoveDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, index.Count())
	for _, p := range index.Passages() {
		assert.True(t, strings.HasPrefix(p.ID, "doc2_"))
	}

	require.NoError(t, o.Clear(ctx))
	assert.Equal(t, 0, o.Stats().TotalEmbeddings)
}

func TestIngestReportsProgress(t *testing.T) {
	o, _ := newOrchestrator(t, 0)
	var last int
	o.SetProgressFunc(func(done, total int) {
		if done > last {
			last = done
		}
		assert.Equal(t, 2, total)
	})
	_, err := o.Ingest(context.Background(), "doc1", policyPages)
	require.NoError(t, err)
	assert.Equal(t, 2, last)
}
