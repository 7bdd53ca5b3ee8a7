// Package llm provides the model client plus LLM-backed judge and extractor
// implementations.
package llm

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/substratehq/strata/pkg/errors"
)

// LLM generates a completion for a prompt. Implementations must be safe for
// concurrent use; parallel rollouts share one client.
type LLM interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// DefaultMaxTokens bounds judge and extractor completions.
const DefaultMaxTokens = 2048

// AnthropicLLM is the Anthropic-backed LLM.
type AnthropicLLM struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicLLM creates a client for the given model.
func NewAnthropicLLM(apiKey string, model anthropic.Model) *AnthropicLLM {
	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	return &AnthropicLLM{
		client:    &client,
		model:     model,
		maxTokens: DefaultMaxTokens,
	}
}

// Generate sends a single-turn prompt and returns the text of the response.
func (a *AnthropicLLM) Generate(ctx context.Context, prompt string) (string, error) {
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model: a.model,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(prompt),
			),
		},
		MaxTokens: a.maxTokens,
	})
	if err != nil {
		return "", errors.WithFields(
			errors.Wrap(err, errors.LLMGenerationFailed, "failed to generate response"),
			errors.Fields{"model": string(a.model)},
		)
	}
	if message == nil || len(message.Content) == 0 {
		return "", errors.New(errors.LLMGenerationFailed, "received empty response")
	}

	block := message.Content[0]
	if block.Type != "text" {
		return "", errors.New(errors.InvalidResponse, "expected a text response block")
	}
	return block.Text, nil
}
