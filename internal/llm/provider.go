package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when a provider replies without any text,
// for example when the reply was blocked or stopped before any output.
var ErrEmptyResponse = errors.New("empty completion")

// Provider completes a conversation. Implementations must be safe for
// concurrent use; questions of one request are answered in parallel.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Name() string
}
