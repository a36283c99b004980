// Package answer turns retrieved passages into a cited natural-language
// answer.
package answer

import (
	"context"
	"log/slog"
	"time"

	"github.com/ziadkadry99/doc-qa/internal/llm"
	"github.com/ziadkadry99/doc-qa/internal/vectordb"
)

// Options configures an Answerer.
type Options struct {
	MaxResponseLength int
	Logger            *slog.Logger
}

// Answerer generates answers, rationale and confidence for a question.
type Answerer struct {
	gen        llm.Generator
	intent     llm.Generator
	attributor Attributor
	maxLen     int
	logger     *slog.Logger
}

// New creates an Answerer. intent may be nil to skip intent extraction.
func New(gen, intent llm.Generator, attributor Attributor, opts Options) *Answerer {
	if attributor == nil {
		attributor = WordOverlapAttributor{MinOverlap: 3, ExcerptLength: 300}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Answerer{
		gen:        gen,
		intent:     intent,
		attributor: attributor,
		maxLen:     opts.MaxResponseLength,
		logger:     opts.Logger,
	}
}

// Answer asks the generator to answer query from results. Generation
// failures produce a degraded response instead of an error.
func (a *Answerer) Answer(ctx context.Context, query string, results []vectordb.SearchResult) *QueryResponse {
	start := time.Now()

	text, err := a.gen.Generate(ctx, BuildPrompt(query, results))
	if err != nil {
		a.logger.Error("answer generation failed", "error", err)
		resp := Degraded(query, "Error generating answer", err)
		resp.ProcessingTime = time.Since(start).Seconds()
		return resp
	}
	text = Truncate(text, a.maxLen)

	rationale, err := a.attributor.Attribute(ctx, text, results)
	if err != nil {
		// The answer stands without citations.
		a.logger.Warn("rationale attribution failed", "error", err)
		rationale = []RationaleItem{}
	}

	return &QueryResponse{
		Query:          query,
		Result:         text,
		Rationale:      rationale,
		Confidence:     Confidence(text, len(results)),
		ProcessingTime: time.Since(start).Seconds(),
	}
}
