package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider generates text through the OpenAI chat completions API.
// A custom base URL makes it work with any OpenAI-compatible endpoint
// (Azure OpenAI, Together AI, a local Ollama /v1, and so on).
type OpenAIProvider struct {
	client *openai.Client
	opts   Options
}

func NewOpenAIProvider(apiKey, baseURL string, opts Options) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(config),
		opts:   opts,
	}
}

func (p *OpenAIProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   p.opts.MaxTokens,
		Temperature: float32(p.opts.Temperature),
		TopP:        float32(p.opts.TopP),
		Stop:        p.opts.Stop,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
