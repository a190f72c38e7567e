package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when Config.Model is empty.
const DefaultOpenAIModel = openai.GPT4oMini

// OpenAI generates text with the Chat Completions API.
type OpenAI struct {
	resilientCaller
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAI creates an OpenAI generator.
func NewOpenAI(cfg Config) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{
		resilientCaller: newResilientCaller(ProviderOpenAI),
		client:          openai.NewClientWithConfig(clientCfg),
		model:           model,
		maxTokens:       cfg.MaxTokens,
	}
}

// Generate implements Generator.
func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	return o.call(ctx, prompt, o.doGenerate)
}

func (o *OpenAI) doGenerate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", classify(err))
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
