package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini API backend.
type GeminiConfig struct {
	APIKey  string
	Model   string        // default: gemini-2.0-flash-lite
	Timeout time.Duration // default: 30s
}

// GeminiClient generates completions through the Gemini API.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewGeminiClient creates a Gemini-backed Generator.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("invalid config: APIKey is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash-lite"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}

	return &GeminiClient{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger.Named("gemini"),
	}, nil
}

// Generate folds system messages into the system instruction and sends the
// remaining turns as contents.
func (g *GeminiClient) Generate(ctx context.Context, messages []ChatMessage, opts GenerateOptions) (*Generation, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var system []string
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(contents) == 0 {
		return nil, errors.New("gemini: at least one user message is required")
	}

	genConfig := &genai.GenerateContentConfig{}
	if len(system) > 0 {
		genConfig.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if opts.Temperature > 0 {
		genConfig.Temperature = genai.Ptr(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		genConfig.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.JSONMode {
		genConfig.ResponseMIMEType = "application/json"
	}

	g.logger.Debug("gemini request starting",
		zap.String("model", g.model),
		zap.Int("content_count", len(contents)),
		zap.Bool("json_mode", opts.JSONMode),
	)

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, genConfig)
	if err != nil {
		g.logger.Error("gemini request failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, fmt.Errorf("gemini: generate content: %w", err)
	}
	if result == nil {
		return nil, ErrEmptyCompletion
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return nil, ErrEmptyCompletion
	}

	gen := &Generation{
		Content:  text,
		Provider: ProviderGemini,
		Model:    g.model,
		Latency:  time.Since(start),
	}
	if u := result.UsageMetadata; u != nil {
		gen.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}

	g.logger.Info("gemini request completed",
		zap.String("model", g.model),
		zap.Int("prompt_tokens", gen.Usage.PromptTokens),
		zap.Int("completion_tokens", gen.Usage.CompletionTokens),
		zap.Duration("duration", gen.Latency),
	)
	return gen, nil
}
