package qa

import (
	"context"
	"strings"
	"time"
)

const healthPrompt = "Hello, this is a health check. Please respond with 'OK'."

// Health checks the LLM, the embedder and the index.
func (s *Service) Health(ctx context.Context) *HealthResponse {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	components := map[string]string{
		"llm":                 s.checkLLM(ctx),
		"embeddings":          s.checkEmbeddings(ctx),
		"document_processing": StatusHealthy,
		"index":               StatusHealthy,
	}

	overall := StatusHealthy
	for _, st := range components {
		if st != StatusHealthy {
			overall = StatusDegraded
			break
		}
	}
	components["overall"] = overall

	return &HealthResponse{
		Status:     overall,
		Timestamp:  time.Now().UTC(),
		Version:    s.opts.Version,
		Components: components,
	}
}

func (s *Service) checkLLM(ctx context.Context) string {
	if s.healthLLM == nil {
		return StatusUnhealthy
	}
	reply, err := s.healthLLM.Generate(ctx, healthPrompt)
	if err != nil {
		s.logger.Warn("llm health check failed", "error", err)
		return StatusUnhealthy
	}
	if !strings.Contains(strings.ToLower(reply), "ok") {
		return StatusUnhealthy
	}
	return StatusHealthy
}

func (s *Service) checkEmbeddings(ctx context.Context) string {
	pool := s.retriever.Embedder()
	v, err := pool.EmbedQuery(ctx, "health check")
	if err != nil {
		s.logger.Warn("embedding health check failed", "error", err)
		return StatusUnhealthy
	}
	if len(v) != pool.Dimensions() {
		return StatusUnhealthy
	}
	return StatusHealthy
}

// Stats reports index, registry and query log statistics.
func (s *Service) Stats(ctx context.Context) (*StatsResponse, error) {
	counts, err := s.docs.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	var queries int
	if s.history != nil {
		if queries, err = s.history.Count(ctx); err != nil {
			return nil, err
		}
	}
	return &StatsResponse{
		Embeddings: s.retriever.Stats(),
		Documents:  counts,
		Queries:    queries,
		Timestamp:  time.Now().UTC(),
	}, nil
}
