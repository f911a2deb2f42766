package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"CommunityInsights/internal/config"
)

// GeminiClient completes prompts with the Gemini API.
type GeminiClient struct {
	client *genai.Client
	models map[Task]string
}

var _ Completer = (*GeminiClient)(nil)

// NewGeminiClient builds a client from configuration.
func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		models: map[Task]string{
			TaskInsight: cfg.InsightModel,
			TaskWriting: cfg.WriterModel,
		},
	}, nil
}

// Complete sends prompt to the model configured for task and returns the joined
// text parts of the first candidate. An empty candidate yields "".
func (g *GeminiClient) Complete(ctx context.Context, task Task, prompt string) (string, error) {
	model := g.models[task]
	result, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini %s (%s): %w", task, model, err)
	}
	if result == nil {
		return "", nil
	}
	return result.Text(), nil
}
