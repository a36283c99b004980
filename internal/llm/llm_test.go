package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockProvider is a test provider that records calls and returns canned responses.
type MockProvider struct {
	mu       sync.Mutex
	Calls    []CompletionRequest
	Response *CompletionResponse
	Err      error
	ProvName string
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		ProvName: name,
		Response: &CompletionResponse{
			Content:      "  mock response \n",
			InputTokens:  10,
			OutputTokens: 20,
			Model:        "mock-model",
			FinishReason: "stop",
		},
	}
}

func (m *MockProvider) Name() string {
	return m.ProvName
}

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func TestGeneratorBuildsMessages(t *testing.T) {
	mock := NewMockProvider("test")
	gen := NewGenerator(mock, "be precise")

	out, err := gen.Generate(context.Background(), "what is covered?")
	require.NoError(t, err)
	assert.Equal(t, "mock response", out)

	require.Equal(t, 1, mock.CallCount())
	call := mock.Calls[0]
	require.Len(t, call.Messages, 2)
	assert.Equal(t, RoleSystem, call.Messages[0].Role)
	assert.Equal(t, "be precise", call.Messages[0].Content)
	assert.Equal(t, RoleUser, call.Messages[1].Role)
	assert.False(t, call.JSONMode)
	assert.InDelta(t, 0.1, call.Temperature, 1e-9)
}

func TestGeneratorJSONCopy(t *testing.T) {
	mock := NewMockProvider("test")
	gen := NewGenerator(mock, "")
	jsonGen := gen.JSON()

	_, err := jsonGen.Generate(context.Background(), "extract")
	require.NoError(t, err)
	assert.True(t, mock.Calls[0].JSONMode)
	assert.Len(t, mock.Calls[0].Messages, 1)
	assert.False(t, gen.JSONMode, "original generator must be unchanged")
}

func TestGeneratorWrapsError(t *testing.T) {
	mock := NewMockProvider("flaky")
	boom := errors.New("quota exceeded")
	mock.Err = boom

	_, err := NewGenerator(mock, "").Generate(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "flaky")
}

func TestGeneratorRejectsEmptyReply(t *testing.T) {
	mock := NewMockProvider("test")
	mock.Response = &CompletionResponse{Content: " \n", FinishReason: "SAFETY"}

	_, err := NewGenerator(mock, "").Generate(context.Background(), "q")
	require.ErrorIs(t, err, ErrEmptyResponse)
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestConversation(t *testing.T) {
	assert.Equal(t, []Message{{Role: RoleUser, Content: "hi"}}, Conversation("", "hi"))

	msgs := Conversation("sys", "hi")
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleSystem, msgs[0].Role)
}

func TestFactoryReturnsErrorForMissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	for _, p := range []string{"openai", "google"} {
		_, err := NewProvider(p, "some-model")
		assert.Error(t, err, "provider %q", p)
	}
}

func TestFactoryReturnsErrorForUnknownProvider(t *testing.T) {
	_, err := NewProvider("unknown", "some-model")
	assert.Error(t, err)
}

func TestFactoryCreatesProviders(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "legacy-key")
	t.Setenv("OLLAMA_HOST", "")

	for _, name := range []string{"openai", "google", "ollama"} {
		p, err := NewProvider(name, "m")
		require.NoError(t, err)
		assert.Equal(t, name, p.Name())
	}

	p, _ := NewProvider("ollama", "llama3")
	ollamaP, ok := p.(*OllamaProvider)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:11434", ollamaP.baseURL)
}

func TestGoogleAPIKeyPrefersGemini(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gemini")
	t.Setenv("GOOGLE_API_KEY", "google")
	assert.Equal(t, "gemini", GoogleAPIKey())
}

func TestRateLimiterPassesThrough(t *testing.T) {
	mock := NewMockProvider("test")
	rl := NewRateLimitedProvider(mock, 60)

	resp, err := rl.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "  mock response \n", resp.Content)
	assert.Equal(t, "test", rl.Name())
}

func TestRateLimiterDisabled(t *testing.T) {
	mock := NewMockProvider("test")
	assert.Same(t, Provider(mock), NewRateLimitedProvider(mock, 0))
}

func TestRateLimiterLimitsRequests(t *testing.T) {
	mock := NewMockProvider("test")
	rl := NewRateLimitedProvider(mock, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	req := CompletionRequest{Messages: []Message{{Role: RoleUser, Content: "hello"}}}

	for i := 0; i < 2; i++ {
		_, err := rl.Complete(ctx, req)
		require.NoError(t, err, "request %d", i)
	}

	// The third request needs a token 30s away and must fail on the deadline.
	_, err := rl.Complete(ctx, req)
	assert.Error(t, err)
	assert.Equal(t, 2, mock.CallCount())
}

func TestGoogleProviderComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.SystemInstruction)
		assert.Equal(t, "application/json", req.GenerationConfig.ResponseMIMEType)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content":      map[string]any{"parts": []map[string]string{{"text": "{\"a\":"}, {"text": "1}"}}},
				"finishReason": "STOP",
			}},
			"usageMetadata": map[string]int{"promptTokenCount": 7, "candidatesTokenCount": 3},
		})
	}))
	defer srv.Close()

	p := NewGoogleProvider("k", srv.URL+"/", "gemini-test")
	resp, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleSystem, Content: "sys"}, {Role: RoleUser, Content: "hi"}},
		JSONMode: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, resp.Content)
	assert.Equal(t, 7, resp.InputTokens)
	assert.Equal(t, "STOP", resp.FinishReason)
}

func TestGoogleProviderBlockedPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer srv.Close()

	_, err := NewGoogleProvider("k", srv.URL, "gemini-test").Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.ErrorIs(t, err, ErrEmptyResponse)
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestGoogleProviderAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"bad key","status":"PERMISSION_DENIED"}}`))
	}))
	defer srv.Close()

	_, err := NewGoogleProvider("k", srv.URL, "m").Complete(context.Background(), CompletionRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PERMISSION_DENIED")
}

func TestOllamaProviderComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "json", req.Format)
		assert.False(t, req.Stream)
		_, _ = w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"ok"},"done_reason":"stop","eval_count":2}`))
	}))
	defer srv.Close()

	resp, err := NewOllamaProvider(srv.URL, "llama3").Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
		JSONMode: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 2, resp.OutputTokens)
}

func TestOpenAIProviderComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"gpt-test","choices":[{"message":{"role":"assistant","content":"covered"},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":1}}`))
	}))
	defer srv.Close()

	resp, err := NewOpenAIProvider("k", srv.URL, "gpt-test").Complete(context.Background(), CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "covered", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 5, resp.InputTokens)
}

func TestRoles(t *testing.T) {
	assert.Equal(t, Role("system"), RoleSystem)
	assert.Equal(t, Role("user"), RoleUser)
	assert.Equal(t, Role("assistant"), RoleAssistant)
}
