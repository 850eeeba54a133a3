package classifier

import (
	"context"
	"net/http"
	"time"

	"gastos/internal/core"
)

const (
	openAIURL     = "https://api.openai.com/v1/chat/completions"
	openAIModel   = "gpt-4o-mini"
	openAITimeout = 30 * time.Second
)

// OpenAI classifies through the chat completions API.
type OpenAI struct {
	apiKey string
	url    string
	client *http.Client
}

func NewOpenAI(apiKey string) *OpenAI {
	return &OpenAI{
		apiKey: apiKey,
		url:    openAIURL,
		client: &http.Client{Timeout: openAITimeout},
	}
}

func (o *OpenAI) Name() string { return ProviderOpenAI }

func (o *OpenAI) Classify(ctx context.Context, tx Transaction, corrections []core.Correction) (core.Classification, error) {
	body := map[string]any{
		"model":       openAIModel,
		"temperature": 0,
		"messages": []map[string]string{
			{"role": "user", "content": BuildPrompt(tx, corrections)},
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + o.apiKey}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := postJSON(ctx, o.client, o.url, headers, body, &out); err != nil {
		return core.Classification{}, err
	}
	if len(out.Choices) == 0 {
		return core.Classification{}, ErrEmptyResponse
	}
	return ParseResponse(out.Choices[0].Message.Content)
}
