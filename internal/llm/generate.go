package llm

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyCompletion is returned when the provider answered without content.
var ErrEmptyCompletion = errors.New("llmclient: empty completion")

// Generate runs one chat completion with the configured model.
func (c *OpenAIClient) Generate(ctx context.Context, messages []ChatMessage, opts GenerateOptions) (*Generation, error) {
	start := time.Now()

	req := &ChatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.JSONMode {
		req.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}

	resp, err := c.ChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return nil, ErrEmptyCompletion
	}

	gen := &Generation{
		Content:  content,
		Provider: ProviderOpenAI,
		Model:    resp.Model,
		Latency:  time.Since(start),
	}
	if gen.Model == "" {
		gen.Model = c.cfg.Model
	}
	if resp.Usage != nil {
		gen.Usage = *resp.Usage
	}
	return gen, nil
}
