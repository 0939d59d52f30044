package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// ProviderConfig selects and configures the generation backend.
type ProviderConfig struct {
	Provider string // openai | gemini
	OpenAI   Config
	Gemini   GeminiConfig
}

// NewGenerator builds the configured provider wrapped with metrics.
func NewGenerator(ctx context.Context, cfg ProviderConfig, logger *zap.Logger) (Generator, error) {
	switch cfg.Provider {
	case "", ProviderOpenAI:
		c, err := NewClient(cfg.OpenAI, logger)
		if err != nil {
			return nil, err
		}
		return Instrument(ProviderOpenAI, c), nil
	case ProviderGemini:
		c, err := NewGeminiClient(ctx, cfg.Gemini, logger)
		if err != nil {
			return nil, err
		}
		return Instrument(ProviderGemini, c), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
