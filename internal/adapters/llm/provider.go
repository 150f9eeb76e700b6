package llm

import (
	"fmt"

	"github.com/querysmith/querysmith/internal/config"
	"github.com/querysmith/querysmith/internal/core/domain"
)

// Options carries the generation parameters shared by every provider.
type Options struct {
	Model             string
	MaxTokens         int
	Temperature       float64
	TopP              float64
	RepetitionPenalty float64
	Stop              []string
}

// defaultStop halts generation before the model starts inventing its own
// observations.
var defaultStop = []string{"\nObservation:"}

// New builds the provider named in the configuration.
func New(cfg *config.Config) (domain.LLMProvider, error) {
	opts := Options{
		Model:             cfg.ModelID,
		MaxTokens:         cfg.MaxTokens,
		Temperature:       cfg.Temperature,
		TopP:              cfg.TopP,
		RepetitionPenalty: cfg.RepetitionPenalty,
		Stop:              defaultStop,
	}

	switch cfg.Provider {
	case "watsonx":
		if cfg.Credentials.WatsonxAPIKey == "" {
			return nil, fmt.Errorf("watsonx provider requires WATSONX_API_KEY")
		}
		if cfg.Credentials.WatsonxProjectID == "" {
			return nil, fmt.Errorf("watsonx provider requires WATSONX_PROJECT_ID")
		}
		return NewWatsonxProvider(cfg.Credentials.WatsonxURL, cfg.Credentials.WatsonxAPIKey, cfg.Credentials.WatsonxProjectID, opts), nil
	case "openai":
		if cfg.Credentials.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY")
		}
		return NewOpenAIProvider(cfg.Credentials.OpenAIAPIKey, cfg.Credentials.OpenAIBaseURL, opts), nil
	case "anthropic":
		if cfg.Credentials.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires ANTHROPIC_API_KEY")
		}
		return NewAnthropicProvider(cfg.Credentials.AnthropicAPIKey, opts), nil
	case "ollama":
		return NewOllamaProvider(cfg.Credentials.OllamaHost, opts), nil
	default:
		return nil, fmt.Errorf("unsupported model provider: %q", cfg.Provider)
	}
}
