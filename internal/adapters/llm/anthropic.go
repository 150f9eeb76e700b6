package llm

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider generates text through Anthropic's Messages API.
type AnthropicProvider struct {
	client *anthropic.Client
	opts   Options
}

func NewAnthropicProvider(apiKey string, opts Options) *AnthropicProvider {
	cl := anthropic.NewClient(
		anthropicopt.WithAPIKey(apiKey),
	)
	return &AnthropicProvider{
		client: &cl,
		opts:   opts,
	}
}

func (p *AnthropicProvider) GenerateText(ctx context.Context, prompt string) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.opts.Model),
		MaxTokens: int64(p.opts.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature:   anthropic.Float(p.opts.Temperature),
		TopP:          anthropic.Float(p.opts.TopP),
		StopSequences: p.opts.Stop,
	})
	if err != nil {
		return "", fmt.Errorf("message creation failed: %w", err)
	}

	var b strings.Builder
	for _, cb := range msg.Content {
		if tb, ok := cb.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	return b.String(), nil
}
