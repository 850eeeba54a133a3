package classifier

import (
	"context"
	"net/http"
	"time"

	"gastos/internal/core"
)

const (
	anthropicURL     = "https://api.anthropic.com/v1/messages"
	anthropicModel   = "claude-3-haiku-20240307"
	anthropicVersion = "2023-06-01"
	anthropicTimeout = 30 * time.Second
)

// Anthropic classifies through the Anthropic messages API.
type Anthropic struct {
	apiKey string
	url    string
	client *http.Client
}

func NewAnthropic(apiKey string) *Anthropic {
	return &Anthropic{
		apiKey: apiKey,
		url:    anthropicURL,
		client: &http.Client{Timeout: anthropicTimeout},
	}
}

func (a *Anthropic) Name() string { return ProviderAnthropic }

func (a *Anthropic) Classify(ctx context.Context, tx Transaction, corrections []core.Correction) (core.Classification, error) {
	body := map[string]any{
		"model":      anthropicModel,
		"max_tokens": 100,
		"messages": []map[string]string{
			{"role": "user", "content": BuildPrompt(tx, corrections)},
		},
	}
	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": anthropicVersion,
	}
	var out struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := postJSON(ctx, a.client, a.url, headers, body, &out); err != nil {
		return core.Classification{}, err
	}
	if len(out.Content) == 0 {
		return core.Classification{}, ErrEmptyResponse
	}
	return ParseResponse(out.Content[0].Text)
}
