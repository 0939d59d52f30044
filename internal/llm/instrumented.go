package llm

import (
	"context"
	"io"

	"fortunegate/internal/metrics"
)

type instrumented struct {
	next     Generator
	provider string
}

// Instrument records request outcome and latency metrics around next.
func Instrument(provider string, next Generator) Generator {
	return &instrumented{next: next, provider: provider}
}

func (i *instrumented) Generate(ctx context.Context, messages []ChatMessage, opts GenerateOptions) (*Generation, error) {
	gen, err := i.next.Generate(ctx, messages, opts)
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues(i.provider, "error").Inc()
		return nil, err
	}
	metrics.LLMRequestsTotal.WithLabelValues(i.provider, "ok").Inc()
	metrics.LLMLatencySeconds.WithLabelValues(i.provider).Observe(gen.Latency.Seconds())
	return gen, nil
}

// Close releases the wrapped provider when it holds resources.
func (i *instrumented) Close() error {
	if c, ok := i.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
