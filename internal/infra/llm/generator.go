// Package llm provides text generation clients for Claude, OpenAI and Gemini
// behind a single Generator interface. Every client runs through a circuit
// breaker and retry policy and records Prometheus metrics.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"news-digest/internal/resilience/circuitbreaker"
	"news-digest/internal/resilience/retry"
	"news-digest/internal/utils/text"
)

// Provider names.
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderNoOp   = "noop"
)

// maxPromptChars keeps prompts well inside every provider's context window.
const maxPromptChars = 12000

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("llm returned empty response")

// Generator produces a completion for a single prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Config selects and configures a provider.
type Config struct {
	Provider  string
	APIKey    string
	Model     string
	MaxTokens int
	// BaseURL overrides the provider endpoint (proxies, tests).
	BaseURL string
}

// New returns the Generator for cfg.Provider.
func New(cfg Config) (Generator, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	switch strings.ToLower(cfg.Provider) {
	case ProviderClaude:
		return NewClaude(cfg), nil
	case ProviderOpenAI:
		return NewOpenAI(cfg), nil
	case ProviderGemini:
		return NewGemini(cfg)
	case ProviderNoOp:
		return NewNoOp(), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// resilientCaller is embedded by every provider client.
type resilientCaller struct {
	name           string
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	metrics        *generatorMetrics
}

func newResilientCaller(name string) resilientCaller {
	return resilientCaller{
		name:           name,
		circuitBreaker: circuitbreaker.New(circuitbreaker.LLMConfig(name + "-api")),
		retryConfig:    retry.LLMConfig(),
		metrics:        defaultGeneratorMetrics(),
	}
}

// Name returns the provider name.
func (r resilientCaller) Name() string {
	return r.name
}

// call runs fn with retry and circuit breaking, trimming and validating the
// output.
func (r resilientCaller) call(ctx context.Context, prompt string, fn func(ctx context.Context, prompt string) (string, error)) (string, error) {
	if text.CountRunes(prompt) > maxPromptChars {
		slog.Warn("prompt truncated",
			slog.String("provider", r.name),
			slog.Int("original_length", text.CountRunes(prompt)))
		prompt = text.Truncate(prompt, maxPromptChars)
	}

	start := time.Now()
	out, err := retry.Do(ctx, r.retryConfig, func() (string, error) {
		return circuitbreaker.Do(r.circuitBreaker, func() (string, error) {
			s, err := fn(ctx, prompt)
			if err != nil {
				return "", err
			}
			s = strings.TrimSpace(s)
			if s == "" {
				return "", ErrEmptyResponse
			}
			return s, nil
		})
	})
	duration := time.Since(start)

	if err != nil {
		if errors.Is(err, circuitbreaker.ErrOpenState) {
			slog.Warn("llm circuit breaker open, request rejected",
				slog.String("provider", r.name),
				slog.String("state", r.circuitBreaker.State().String()))
		}
		r.metrics.record(r.name, "error", duration, 0)
		return "", fmt.Errorf("%s generate: %w", r.name, err)
	}

	r.metrics.record(r.name, "success", duration, text.CountRunes(out))
	slog.DebugContext(ctx, "llm generation completed",
		slog.String("provider", r.name),
		slog.Int("output_length", text.CountRunes(out)),
		slog.Duration("duration", duration))
	return out, nil
}
