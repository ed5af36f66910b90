package clients

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/googleai"
)

const (
	DefaultFastModel      = "gemini-3-flash-preview"
	DefaultReasoningModel = "gemini-3-pro-preview"
)

// GoogleAI returns a Gemini chat model. An empty model name selects DefaultFastModel.
func GoogleAI(ctx context.Context, apiKey, model string) (*googleai.GoogleAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is not set")
	}
	if model == "" {
		model = DefaultFastModel
	}

	// See https://ai.google.dev/gemini-api/docs/models/gemini for possible models
	llm, err := googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(model))
	if err != nil {
		return nil, fmt.Errorf("failed to create google ai client for %s: %w", model, err)
	}
	return llm, nil
}

// Models holds the two tiers of models a research run uses.
type Models struct {
	Fast      *googleai.GoogleAI
	Reasoning *googleai.GoogleAI
}

func NewModels(ctx context.Context, apiKey, fastModel, reasoningModel string) (*Models, error) {
	fast, err := GoogleAI(ctx, apiKey, fastModel)
	if err != nil {
		return nil, err
	}
	if reasoningModel == "" {
		reasoningModel = DefaultReasoningModel
	}
	reasoning, err := GoogleAI(ctx, apiKey, reasoningModel)
	if err != nil {
		return nil, err
	}
	return &Models{Fast: fast, Reasoning: reasoning}, nil
}
