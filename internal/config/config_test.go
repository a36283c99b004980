package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, ProviderGoogle, cfg.Provider)
	assert.Equal(t, 1000, cfg.Chunking.ChunkSize)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, 384, cfg.EmbeddingDimension)
	assert.Equal(t, 10, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.7, cfg.Retrieval.ConfidenceThreshold, 1e-9)
	assert.Equal(t, int64(50*1024*1024), cfg.Download.MaxFileSize)
	assert.Equal(t, 30, cfg.Download.TimeoutSeconds)
	assert.Equal(t, 2000, cfg.Answer.MaxResponseLength)
	assert.Equal(t, "/api/v1", cfg.Server.APIPrefix)
	assert.Equal(t, 100, cfg.Server.RateLimitRequests)
	assert.Len(t, cfg.Chunking.SectionKeywords, 12)
	require.NoError(t, cfg.Validate())
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.docqa.yml")

	original := DefaultConfig()
	original.Provider = ProviderOpenAI
	original.Model = "gpt-4o"
	original.IndexBackend = BackendChromem
	original.Chunking.ChunkSize = 500
	original.Chunking.SectionKeywords = []string{"COVERAGE", "SCHEDULE"}
	original.Retrieval.ConfidenceThreshold = 0.55

	require.NoError(t, original.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, original.Provider, loaded.Provider)
	assert.Equal(t, original.Model, loaded.Model)
	assert.Equal(t, BackendChromem, loaded.IndexBackend)
	assert.Equal(t, 500, loaded.Chunking.ChunkSize)
	assert.Equal(t, []string{"COVERAGE", "SCHEDULE"}, loaded.Chunking.SectionKeywords)
	assert.InDelta(t, 0.55, loaded.Retrieval.ConfidenceThreshold, 1e-9)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yml"))
	require.NoError(t, err, "missing file should yield defaults")
	assert.Equal(t, ProviderGoogle, cfg.Provider)
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yml")
	require.NoError(t, DefaultConfig().Save(path))

	t.Setenv("DOCQA_PROVIDER", "openai")
	t.Setenv("DOCQA_SERVER__PORT", "9090")
	t.Setenv("DOCQA_RETRIEVAL__TOP_K", "5")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, loaded.Provider)
	assert.Equal(t, 9090, loaded.Server.Port)
	assert.Equal(t, 5, loaded.Retrieval.TopK)
}

func TestLoadTokenFallback(t *testing.T) {
	t.Setenv(TokenEnvVar, "secret-token")
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yml"))
	require.NoError(t, err)
	assert.Equal(t, "secret-token", cfg.APIToken)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty provider", func(c *Config) { c.Provider = "" }},
		{"invalid provider", func(c *Config) { c.Provider = "invalid" }},
		{"hugot is not a chat provider", func(c *Config) { c.Provider = ProviderHugot }},
		{"empty model", func(c *Config) { c.Model = "" }},
		{"invalid embedding provider", func(c *Config) { c.EmbeddingProvider = "bogus" }},
		{"zero dimension", func(c *Config) { c.EmbeddingDimension = 0 }},
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"unknown backend", func(c *Config) { c.IndexBackend = "faiss" }},
		{"negative concurrency", func(c *Config) { c.MaxConcurrency = -1 }},
		{"zero chunk size", func(c *Config) { c.Chunking.ChunkSize = 0 }},
		{"overlap exceeds chunk", func(c *Config) { c.Chunking.Overlap = 1000 }},
		{"zero top k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"threshold above one", func(c *Config) { c.Retrieval.ConfidenceThreshold = 1.5 }},
		{"zero max file size", func(c *Config) { c.Download.MaxFileSize = 0 }},
		{"unknown attribution", func(c *Config) { c.Answer.Attribution = "magic" }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
		{"prefix without slash", func(c *Config) { c.Server.APIPrefix = "api" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDefaultEmbeddingFor(t *testing.T) {
	model, dim := DefaultEmbeddingFor(ProviderHugot)
	assert.Equal(t, "sentence-transformers/all-MiniLM-L6-v2", model)
	assert.Equal(t, 384, dim)

	assert.Equal(t, "gpt-4o-mini", DefaultModelFor(ProviderOpenAI))
	assert.Empty(t, DefaultModelFor(ProviderLocal))
}

func TestAPIKeyEnvVar(t *testing.T) {
	assert.Equal(t, "OPENAI_API_KEY", APIKeyEnvVar(ProviderOpenAI))
	assert.Equal(t, "GEMINI_API_KEY", APIKeyEnvVar(ProviderGoogle))
	assert.Empty(t, APIKeyEnvVar(ProviderOllama))
}

func TestValidateUnitFloat(t *testing.T) {
	assert.NoError(t, validateUnitFloat("0.7"))
	assert.NoError(t, validateUnitFloat(" 1 "))
	assert.Error(t, validateUnitFloat("abc"))
	assert.Error(t, validateUnitFloat("-0.1"))
}
