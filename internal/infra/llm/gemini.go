package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when Config.Model is empty.
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini generates text with the Gemini API.
type Gemini struct {
	resilientCaller
	client    *genai.Client
	model     string
	maxTokens int
}

// NewGemini creates a Gemini generator.
func NewGemini(cfg Config) (*Gemini, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{
		resilientCaller: newResilientCaller(ProviderGemini),
		client:          client,
		model:           model,
		maxTokens:       cfg.MaxTokens,
	}, nil
}

// Generate implements Generator.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	return g.call(ctx, prompt, g.doGenerate)
}

func (g *Gemini) doGenerate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
	}}
	config := &genai.GenerateContentConfig{MaxOutputTokens: int32(g.maxTokens)}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini api error: %w", classify(err))
	}
	return resp.Text(), nil
}
