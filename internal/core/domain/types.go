package domain

import "context"

// LLMProvider defines the interface for LLM services. Implementations hold
// their generation parameters (model, temperature, stop sequences) fixed at
// construction; the agent only ever asks for one completion per prompt.
type LLMProvider interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}
