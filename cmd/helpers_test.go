package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/doc-qa/internal/answer"
	"github.com/ziadkadry99/doc-qa/internal/config"
	"github.com/ziadkadry99/doc-qa/internal/documents"
	"github.com/ziadkadry99/doc-qa/internal/logging"
	"github.com/ziadkadry99/doc-qa/internal/vectordb"
)

func offlineConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	cfg := config.DefaultConfig()
	cfg.EmbeddingProvider = config.ProviderLocal
	cfg.EmbeddingDimension = 64
	cfg.DataDir = t.TempDir()
	return cfg
}

func TestExpandSources(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.pdf", "nested/b.pdf", "nested/notes.txt"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0644))
	}

	got, err := expandSources([]string{
		"https://example.com/policy.pdf",
		filepath.Join(dir, "**", "*.pdf"),
		"file://" + filepath.Join(dir, "a.pdf"),
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"https://example.com/policy.pdf",
		filepath.Join(dir, "a.pdf"),
		filepath.Join(dir, "nested", "b.pdf"),
		filepath.Join(dir, "a.pdf"),
	}, got)
}

func TestExpandSourcesNoMatch(t *testing.T) {
	got, err := expandSources([]string{filepath.Join(t.TempDir(), "*.pdf")})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short text", truncate("short\n  text", 20))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestShortName(t *testing.T) {
	assert.Equal(t, "policy.pdf", shortName("https://example.com/docs/policy.pdf"))
	assert.Equal(t, "policy.pdf", shortName("policy.pdf"))
}

func TestBuildAppOffline(t *testing.T) {
	cfg := offlineConfig(t)

	a, err := buildApp(cfg, logging.Discard(), appOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	assert.Equal(t, "hash", a.embedder.Name())
	assert.False(t, a.fetcher.AllowLocal, "local files stay off unless asked for")
	assert.IsType(t, &vectordb.FlatIndex{}, a.index)
	assert.Zero(t, a.index.Count())
	assert.FileExists(t, filepath.Join(cfg.DataDir, "docqa.db"))

	stats, err := a.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Queries)
}

func TestBuildAppRequiresLLM(t *testing.T) {
	cfg := offlineConfig(t)

	_, err := buildApp(cfg, logging.Discard(), appOptions{requireLLM: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating LLM provider")
}

func TestBuildAppChromemBackend(t *testing.T) {
	cfg := offlineConfig(t)
	cfg.IndexBackend = config.BackendChromem

	a, err := buildApp(cfg, logging.Discard(), appOptions{allowLocalFiles: true})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	assert.IsType(t, &vectordb.ChromemIndex{}, a.index)
	assert.True(t, a.fetcher.AllowLocal)
}

func TestBuildAppResetsDocumentsMissingFromIndex(t *testing.T) {
	cfg := offlineConfig(t)
	ctx := context.Background()

	a, err := buildApp(cfg, logging.Discard(), appOptions{})
	require.NoError(t, err)
	store := documents.NewStore(a.db)
	require.NoError(t, store.Upsert(ctx, documents.Document{ID: "lost", URL: "https://example.com/lost.pdf"}))
	require.NoError(t, store.SetStatus(ctx, "lost", documents.StatusIndexed, 7, ""))
	require.NoError(t, a.Close())

	a, err = buildApp(cfg, logging.Discard(), appOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	doc, err := documents.NewStore(a.db).Get(ctx, "lost")
	require.NoError(t, err)
	assert.Equal(t, documents.StatusUnindexed, doc.Status)
	assert.Zero(t, doc.ChunkCount)
}

func TestCreateAttributor(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.IsType(t, answer.WordOverlapAttributor{}, createAttributor(cfg, nil))

	cfg.Answer.Attribution = config.AttributionEmbedding
	assert.IsType(t, answer.EmbeddingAttributor{}, createAttributor(cfg, nil))
}

func TestCreateEmbedderUnsupported(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.EmbeddingProvider = "bogus"
	_, err := createEmbedderFromConfig(cfg)
	assert.Error(t, err)
}
