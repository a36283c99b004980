package config

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderGoogle ProviderType = "google"
	ProviderOllama ProviderType = "ollama"
	// ProviderHugot runs a sentence-transformers model in-process.
	ProviderHugot ProviderType = "hugot"
	// ProviderLocal is the offline feature-hashing embedder.
	ProviderLocal ProviderType = "local"
)

// IndexBackend selects the vector index implementation.
type IndexBackend string

const (
	BackendFlat    IndexBackend = "flat"
	BackendChromem IndexBackend = "chromem"
)

// AttributionStrategy selects how answer rationale is attributed to passages.
type AttributionStrategy string

const (
	AttributionWordOverlap AttributionStrategy = "word_overlap"
	AttributionEmbedding   AttributionStrategy = "embedding"
)

// Config is the top-level docqa configuration, corresponding to .docqa.yml.
type Config struct {
	Provider             ProviderType    `yaml:"provider" koanf:"provider"`
	Model                string          `yaml:"model" koanf:"model"`
	EmbeddingProvider    ProviderType    `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel       string          `yaml:"embedding_model" koanf:"embedding_model"`
	EmbeddingDimension   int             `yaml:"embedding_dimension" koanf:"embedding_dimension"`
	DataDir              string          `yaml:"data_dir" koanf:"data_dir"`
	IndexBackend         IndexBackend    `yaml:"index_backend" koanf:"index_backend"`
	APIToken             string          `yaml:"api_token" koanf:"api_token"`
	LogLevel             string          `yaml:"log_level" koanf:"log_level"`
	LogFormat            string          `yaml:"log_format" koanf:"log_format"`
	MaxConcurrency       int             `yaml:"max_concurrency" koanf:"max_concurrency"`
	EmbeddingBatchSize   int             `yaml:"embedding_batch_size" koanf:"embedding_batch_size"`
	QuestionConcurrency  int             `yaml:"question_concurrency" koanf:"question_concurrency"`
	LLMRequestsPerMinute int             `yaml:"llm_requests_per_minute" koanf:"llm_requests_per_minute"`
	Server               ServerConfig    `yaml:"server" koanf:"server"`
	Chunking             ChunkingConfig  `yaml:"chunking" koanf:"chunking"`
	Retrieval            RetrievalConfig `yaml:"retrieval" koanf:"retrieval"`
	Download             DownloadConfig  `yaml:"download" koanf:"download"`
	Answer               AnswerConfig    `yaml:"answer" koanf:"answer"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Host                  string `yaml:"host" koanf:"host"`
	Port                  int    `yaml:"port" koanf:"port"`
	APIPrefix             string `yaml:"api_prefix" koanf:"api_prefix"`
	AllowAllOrigins       bool   `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	RateLimitRequests     int    `yaml:"rate_limit_requests" koanf:"rate_limit_requests"`
	RateLimitWindowSecs   int    `yaml:"rate_limit_window_seconds" koanf:"rate_limit_window_seconds"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds" koanf:"request_timeout_seconds"`
}

// ChunkingConfig controls how document text is split into passages.
type ChunkingConfig struct {
	ChunkSize         int      `yaml:"chunk_size" koanf:"chunk_size"`
	Overlap           int      `yaml:"overlap" koanf:"overlap"`
	SectionKeywords   []string `yaml:"section_keywords" koanf:"section_keywords"`
	MinFragmentLength int      `yaml:"min_fragment_length" koanf:"min_fragment_length"`
	MaxHeaderLength   int      `yaml:"max_header_length" koanf:"max_header_length"`
}

// RetrievalConfig controls similarity search and clause ranking.
type RetrievalConfig struct {
	TopK                int     `yaml:"top_k" koanf:"top_k"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" koanf:"confidence_threshold"`
}

// DownloadConfig bounds remote document fetches.
type DownloadConfig struct {
	TimeoutSeconds int   `yaml:"timeout_seconds" koanf:"timeout_seconds"`
	MaxFileSize    int64 `yaml:"max_file_size" koanf:"max_file_size"`
}

// AnswerConfig controls answer generation and rationale attribution.
type AnswerConfig struct {
	MaxResponseLength int                 `yaml:"max_response_length" koanf:"max_response_length"`
	ExcerptLength     int                 `yaml:"excerpt_length" koanf:"excerpt_length"`
	Attribution       AttributionStrategy `yaml:"attribution" koanf:"attribution"`
	MinWordOverlap    int                 `yaml:"min_word_overlap" koanf:"min_word_overlap"`
	ExtractIntent     bool                `yaml:"extract_intent" koanf:"extract_intent"`
}
