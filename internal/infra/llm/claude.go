package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultClaudeModel is used when Config.Model is empty.
const DefaultClaudeModel = string(anthropic.ModelClaudeSonnet4_5_20250929)

// Claude generates text with the Anthropic Messages API.
type Claude struct {
	resilientCaller
	client    anthropic.Client
	model     string
	maxTokens int
}

// NewClaude creates a Claude generator. SDK-level retries are disabled; the
// shared retry policy applies instead.
func NewClaude(cfg Config) *Claude {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultClaudeModel
	}
	return &Claude{
		resilientCaller: newResilientCaller(ProviderClaude),
		client:          anthropic.NewClient(opts...),
		model:           model,
		maxTokens:       cfg.MaxTokens,
	}
}

// Generate implements Generator.
func (c *Claude) Generate(ctx context.Context, prompt string) (string, error) {
	return c.call(ctx, prompt, c.doGenerate)
}

func (c *Claude) doGenerate(ctx context.Context, prompt string) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude api error: %w", classify(err))
	}

	var b strings.Builder
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	return b.String(), nil
}
