package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ziadkadry99/doc-qa/internal/answer"
	"github.com/ziadkadry99/doc-qa/internal/chunker"
	"github.com/ziadkadry99/doc-qa/internal/config"
	"github.com/ziadkadry99/doc-qa/internal/db"
	"github.com/ziadkadry99/doc-qa/internal/documents"
	"github.com/ziadkadry99/doc-qa/internal/embeddings"
	"github.com/ziadkadry99/doc-qa/internal/fetch"
	"github.com/ziadkadry99/doc-qa/internal/history"
	"github.com/ziadkadry99/doc-qa/internal/llm"
	"github.com/ziadkadry99/doc-qa/internal/logging"
	"github.com/ziadkadry99/doc-qa/internal/qa"
	"github.com/ziadkadry99/doc-qa/internal/retrieval"
	"github.com/ziadkadry99/doc-qa/internal/vectordb"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `docqa init` to create a config file", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs always go to stderr so stdout
// stays free for command output and the MCP protocol.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	model := cfg.EmbeddingModel
	if model == "" {
		model, _ = config.DefaultEmbeddingFor(cfg.EmbeddingProvider)
	}
	dims := cfg.EmbeddingDimension

	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		return embeddings.NewOpenAIEmbedder(apiKey, os.Getenv("OPENAI_BASE_URL"), model, dims), nil
	case config.ProviderGoogle:
		apiKey := llm.GoogleAPIKey()
		if apiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required for Gemini embeddings")
		}
		return embeddings.NewGoogleEmbedder(apiKey, "", model, dims), nil
	case config.ProviderOllama:
		return embeddings.NewOllamaEmbedder(model, dims, llm.OllamaHost()), nil
	case config.ProviderHugot:
		return embeddings.NewHugotEmbedder(model, filepath.Join(cfg.DataDir, "models"), dims)
	case config.ProviderLocal:
		return embeddings.NewHashEmbedder(dims), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.EmbeddingProvider)
	}
}

// createLLMProviderFromConfig creates a rate-limited LLM provider based on
// config settings.
func createLLMProviderFromConfig(cfg *config.Config) (llm.Provider, error) {
	p, err := llm.NewProvider(string(cfg.Provider), cfg.Model)
	if err != nil {
		return nil, err
	}
	return llm.NewRateLimitedProvider(p, cfg.LLMRequestsPerMinute), nil
}

// unavailableGenerator stands in for the LLM when commands that never
// generate text run without provider credentials.
type unavailableGenerator struct {
	err error
}

func (g unavailableGenerator) Generate(context.Context, string) (string, error) {
	return "", g.err
}

// app bundles everything a command needs to run the QA pipeline.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *db.DB
	index    vectordb.Index
	embedder embeddings.Embedder
	fetcher  *fetch.Fetcher
	svc      *qa.Service
}

// appOptions tunes buildApp for the calling command.
type appOptions struct {
	// requireLLM fails wiring when no LLM provider is configured. Otherwise
	// answering degrades instead.
	requireLLM bool
	// allowLocalFiles lets documents be read from local paths. Only local
	// entry points (CLI, MCP over stdio) set it.
	allowLocalFiles bool
}

// buildApp wires config into a ready QA service and resets registry records
// whose passages are missing from the index.
func buildApp(cfg *config.Config, logger *slog.Logger, opts appOptions) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, embedder: embedder}

	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	indexDir := filepath.Join(cfg.DataDir, "index")
	switch cfg.IndexBackend {
	case config.BackendChromem:
		a.index, err = vectordb.NewChromemIndex(indexDir, embedder, logger)
	default:
		a.index, err = vectordb.NewFlatIndex(indexDir, embedder.Dimensions(), logger)
	}
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	a.db, err = db.Open(filepath.Join(cfg.DataDir, db.FileName))
	if err != nil {
		return nil, err
	}

	var gen llm.Generator
	provider, err := createLLMProviderFromConfig(cfg)
	switch {
	case err == nil:
		gen = llm.NewGenerator(provider, answer.SystemPrompt)
	case opts.requireLLM:
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	default:
		logger.Debug("LLM provider unavailable", "error", err)
		gen = unavailableGenerator{err: fmt.Errorf("LLM provider unavailable: %w", err)}
	}

	var intent llm.Generator
	if pg, isProvider := gen.(*llm.ProviderGenerator); isProvider && cfg.Answer.ExtractIntent {
		intent = pg.JSON()
	}

	pool := embeddings.NewPool(embedder, cfg.MaxConcurrency, cfg.EmbeddingBatchSize)
	retriever := retrieval.New(
		chunker.New(chunker.Options{
			ChunkSize:         cfg.Chunking.ChunkSize,
			Overlap:           cfg.Chunking.Overlap,
			SectionKeywords:   cfg.Chunking.SectionKeywords,
			MinFragmentLength: cfg.Chunking.MinFragmentLength,
			MaxHeaderLength:   cfg.Chunking.MaxHeaderLength,
		}),
		pool,
		a.index,
		retrieval.Options{
			TopK:      cfg.Retrieval.TopK,
			Threshold: cfg.Retrieval.ConfidenceThreshold,
			Logger:    logger,
		},
	)

	answerer := answer.New(gen, intent, createAttributor(cfg, pool), answer.Options{
		MaxResponseLength: cfg.Answer.MaxResponseLength,
		Logger:            logger,
	})

	a.fetcher = fetch.New(time.Duration(cfg.Download.TimeoutSeconds)*time.Second, cfg.Download.MaxFileSize)
	a.fetcher.AllowLocal = opts.allowLocalFiles

	a.svc = qa.New(a.fetcher, retriever, answerer, gen,
		documents.NewStore(a.db), history.NewStore(a.db),
		qa.Options{
			QuestionConcurrency: cfg.QuestionConcurrency,
			ExtractIntent:       intent != nil,
			Version:             Version,
			Logger:              logger,
		})

	if _, err := a.svc.Reconcile(context.Background()); err != nil {
		return nil, fmt.Errorf("reconciling document registry: %w", err)
	}

	ok = true
	return a, nil
}

func createAttributor(cfg *config.Config, pool *embeddings.Pool) answer.Attributor {
	if cfg.Answer.Attribution == config.AttributionEmbedding {
		return answer.EmbeddingAttributor{
			Embedder:      pool,
			Threshold:     cfg.Retrieval.ConfidenceThreshold,
			ExcerptLength: cfg.Answer.ExcerptLength,
		}
	}
	return answer.WordOverlapAttributor{
		MinOverlap:    cfg.Answer.MinWordOverlap,
		ExcerptLength: cfg.Answer.ExcerptLength,
	}
}

// Close releases the database and any embedder resources.
func (a *app) Close() error {
	var errs []error
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	if c, ok := a.embedder.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// setup loads config, builds the logger and wires the app.
func setup(opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	return buildApp(cfg, logger, opts)
}
