package llm

import (
	"fmt"
	"os"
)

// NewProvider creates a new LLM provider based on the given provider type and model.
// Supported provider types: "openai", "google", "ollama".
func NewProvider(providerType string, model string) (Provider, error) {
	switch providerType {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return NewOpenAIProvider(apiKey, os.Getenv("OPENAI_BASE_URL"), model), nil

	case "google":
		apiKey := GoogleAPIKey()
		if apiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY environment variable is not set")
		}
		return NewGoogleProvider(apiKey, "", model), nil

	case "ollama":
		return NewOllamaProvider(OllamaHost(), model), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}

// GoogleAPIKey returns the Gemini API key, preferring GEMINI_API_KEY over
// GOOGLE_API_KEY.
func GoogleAPIKey() string {
	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		return k
	}
	return os.Getenv("GOOGLE_API_KEY")
}

// OllamaHost returns the Ollama base URL from OLLAMA_HOST or the local default.
func OllamaHost() string {
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		return host
	}
	return "http://localhost:11434"
}
