package llm

import (
	"context"
	"fmt"
	"strings"
)

// Generator turns a single prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ProviderGenerator adapts a Provider to the Generator interface.
type ProviderGenerator struct {
	Provider    Provider
	System      string
	MaxTokens   int
	Temperature float64
	// JSONMode asks the provider for a JSON object response.
	JSONMode bool
}

// NewGenerator returns a ProviderGenerator with low-temperature defaults
// suited to grounded answering.
func NewGenerator(p Provider, system string) *ProviderGenerator {
	return &ProviderGenerator{
		Provider:    p,
		System:      system,
		MaxTokens:   1024,
		Temperature: 0.1,
	}
}

// Generate sends prompt as a user message and returns the trimmed reply.
func (g *ProviderGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.Provider.Complete(ctx, CompletionRequest{
		Messages:    Conversation(g.System, prompt),
		MaxTokens:   g.MaxTokens,
		Temperature: g.Temperature,
		JSONMode:    g.JSONMode,
	})
	if err != nil {
		return "", fmt.Errorf("%s generate: %w", g.Provider.Name(), err)
	}
	out := strings.TrimSpace(resp.Content)
	if out == "" {
		return "", fmt.Errorf("%s generate: %w (finish reason %q)", g.Provider.Name(), ErrEmptyResponse, resp.FinishReason)
	}
	return out, nil
}

// JSON returns a copy of g that requests JSON output.
func (g *ProviderGenerator) JSON() *ProviderGenerator {
	c := *g
	c.JSONMode = true
	return &c
}
