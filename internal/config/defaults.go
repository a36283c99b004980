package config

// DefaultSectionKeywords are the header keywords that open a new section
// when they appear in a short line of policy text.
var DefaultSectionKeywords = []string{
	"COVERAGE",
	"EXCLUSIONS",
	"DEFINITIONS",
	"CONDITIONS",
	"BENEFITS",
	"LIMITATIONS",
	"WAITING PERIOD",
	"CLAIMS",
	"PREMIUM",
	"DEDUCTIBLE",
	"TERMINATION",
	"RENEWAL",
}

// defaultModels maps each provider to its default chat and embedding models.
var defaultModels = map[ProviderType]struct {
	Model          string
	EmbeddingModel string
	Dimension      int
}{
	ProviderOpenAI: {Model: "gpt-4o-mini", EmbeddingModel: "text-embedding-3-small", Dimension: 1536},
	ProviderGoogle: {Model: "gemini-1.5-flash", EmbeddingModel: "text-embedding-004", Dimension: 768},
	ProviderOllama: {Model: "llama3", EmbeddingModel: "nomic-embed-text", Dimension: 768},
	ProviderHugot:  {EmbeddingModel: "sentence-transformers/all-MiniLM-L6-v2", Dimension: 384},
	ProviderLocal:  {EmbeddingModel: "hash", Dimension: 384},
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:             ProviderGoogle,
		Model:                "gemini-1.5-flash",
		EmbeddingProvider:    ProviderHugot,
		EmbeddingModel:       "sentence-transformers/all-MiniLM-L6-v2",
		EmbeddingDimension:   384,
		DataDir:              "data",
		IndexBackend:         BackendFlat,
		LogLevel:             "info",
		LogFormat:            "pretty",
		MaxConcurrency:       4,
		EmbeddingBatchSize:   32,
		QuestionConcurrency:  4,
		LLMRequestsPerMinute: 60,
		Server: ServerConfig{
			Host:                  "0.0.0.0",
			Port:                  8000,
			APIPrefix:             "/api/v1",
			AllowAllOrigins:       true,
			RateLimitRequests:     100,
			RateLimitWindowSecs:   60,
			RequestTimeoutSeconds: 120,
		},
		Chunking: ChunkingConfig{
			ChunkSize:         1000,
			Overlap:           200,
			SectionKeywords:   append([]string(nil), DefaultSectionKeywords...),
			MinFragmentLength: 10,
			MaxHeaderLength:   100,
		},
		Retrieval: RetrievalConfig{
			TopK:                10,
			ConfidenceThreshold: 0.7,
		},
		Download: DownloadConfig{
			TimeoutSeconds: 30,
			MaxFileSize:    50 * 1024 * 1024,
		},
		Answer: AnswerConfig{
			MaxResponseLength: 2000,
			ExcerptLength:     300,
			Attribution:       AttributionWordOverlap,
			MinWordOverlap:    3,
			ExtractIntent:     true,
		},
	}
}

// DefaultModelFor returns the default chat model for a provider, or "" when
// the provider has no chat model.
func DefaultModelFor(p ProviderType) string {
	return defaultModels[p].Model
}

// DefaultEmbeddingFor returns the default embedding model and its dimension
// for a provider.
func DefaultEmbeddingFor(p ProviderType) (string, int) {
	d := defaultModels[p]
	return d.EmbeddingModel, d.Dimension
}
