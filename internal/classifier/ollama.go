package classifier

import (
	"context"
	"net/http"
	"strings"
	"time"

	"gastos/internal/core"
)

const (
	DefaultOllamaModel = "llama3.2"
	ollamaTimeout      = 60 * time.Second
)

// Ollama classifies through a local Ollama server.
type Ollama struct {
	host   string
	model  string
	client *http.Client
}

func NewOllama(host, model string) *Ollama {
	if model == "" {
		model = DefaultOllamaModel
	}
	return &Ollama{
		host:   strings.TrimRight(host, "/"),
		model:  model,
		client: &http.Client{Timeout: ollamaTimeout},
	}
}

func (o *Ollama) Name() string { return ProviderOllama }

func (o *Ollama) Classify(ctx context.Context, tx Transaction, corrections []core.Correction) (core.Classification, error) {
	body := map[string]any{
		"model":   o.model,
		"prompt":  BuildPrompt(tx, corrections),
		"stream":  false,
		"options": map[string]any{"temperature": 0},
	}
	var out struct {
		Response string `json:"response"`
	}
	if err := postJSON(ctx, o.client, o.host+"/api/generate", nil, body, &out); err != nil {
		return core.Classification{}, err
	}
	return ParseResponse(out.Response)
}
