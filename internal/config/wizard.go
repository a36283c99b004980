package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and saves the result
// to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to docqa! Let's configure your document Q&A service.")
	fmt.Println()

	providerPrompt := promptui.Select{
		Label: "Select LLM provider for answers",
		Items: []string{"google", "openai", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	provider := ProviderType(providerStr)

	embedPrompt := promptui.Select{
		Label: "Select embedding provider",
		Items: []string{
			"hugot  - all-MiniLM-L6-v2 in-process (384 dims, no API key)",
			"local  - offline hashing embedder (for testing)",
			"openai - text-embedding-3-small",
			"google - text-embedding-004",
			"ollama - nomic-embed-text",
		},
	}
	embedIdx, _, err := embedPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("embedding selection: %w", err)
	}
	embedProviders := []ProviderType{ProviderHugot, ProviderLocal, ProviderOpenAI, ProviderGoogle, ProviderOllama}
	embedProvider := embedProviders[embedIdx]

	backendPrompt := promptui.Select{
		Label: "Select vector index backend",
		Items: []string{string(BackendFlat), string(BackendChromem)},
	}
	_, backend, err := backendPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("backend selection: %w", err)
	}

	dataPrompt := promptui.Prompt{
		Label:   "Data directory for the index and registry",
		Default: "data",
	}
	dataDir, err := dataPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	thresholdPrompt := promptui.Prompt{
		Label:    "Clause confidence threshold (0-1)",
		Default:  "0.7",
		Validate: validateUnitFloat,
	}
	thresholdStr, err := thresholdPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("threshold: %w", err)
	}
	threshold, _ := strconv.ParseFloat(strings.TrimSpace(thresholdStr), 64)

	cfg := DefaultConfig()
	cfg.Provider = provider
	cfg.Model = DefaultModelFor(provider)
	cfg.EmbeddingProvider = embedProvider
	cfg.EmbeddingModel, cfg.EmbeddingDimension = DefaultEmbeddingFor(embedProvider)
	cfg.IndexBackend = IndexBackend(backend)
	cfg.DataDir = dataDir
	cfg.Retrieval.ConfidenceThreshold = threshold

	for _, p := range []ProviderType{provider, embedProvider} {
		if envVar := APIKeyEnvVar(p); envVar != "" && os.Getenv(envVar) == "" {
			fmt.Printf("\nNote: Set %s in your environment before running docqa serve.\n", envVar)
		}
	}
	if os.Getenv(TokenEnvVar) == "" {
		fmt.Printf("Note: Set %s (or api_token) to require bearer authentication.\n", TokenEnvVar)
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

func validateUnitFloat(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("not a number")
	}
	if v < 0 || v > 1 {
		return fmt.Errorf("must be between 0 and 1")
	}
	return nil
}
