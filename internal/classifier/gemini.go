package classifier

import (
	"context"
	"fmt"

	"gastos/internal/core"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.0-flash"

// contentGenerator is the part of *genai.Models the classifier needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini classifies through the Gemini API.
type Gemini struct {
	models contentGenerator
	model  string
	config *genai.GenerateContentConfig
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return newGemini(client.Models, model), nil
}

func newGemini(models contentGenerator, model string) *Gemini {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &Gemini{
		models: models,
		model:  model,
		config: &genai.GenerateContentConfig{
			Temperature:      genai.Ptr[float32](0),
			MaxOutputTokens:  100,
			ResponseMIMEType: "application/json",
		},
	}
}

func (g *Gemini) Name() string { return ProviderGemini }

func (g *Gemini) Classify(ctx context.Context, tx Transaction, corrections []core.Correction) (core.Classification, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(BuildPrompt(tx, corrections)), g.config)
	if err != nil {
		return core.Classification{}, fmt.Errorf("gemini generate: %w", err)
	}
	return ParseResponse(resp.Text())
}
