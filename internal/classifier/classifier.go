// Package classifier assigns a category and subcategory to bank movements,
// either through an LLM provider or through keyword rules.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"gastos/internal/core"

	"github.com/shopspring/decimal"
)

// Transaction is the input of a classification.
type Transaction struct {
	Description string
	Amount      decimal.Decimal
}

// Classifier assigns a category to a transaction. Corrections are past
// manual categorizations, most used first, that providers may learn from.
type Classifier interface {
	Classify(ctx context.Context, tx Transaction, corrections []core.Correction) (core.Classification, error)
	Name() string
}

const (
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderRules     = "rules"

	// maxPromptCorrections bounds how many corrections are shown to a model.
	maxPromptCorrections = 10
)

var (
	ErrNoJSON        = errors.New("no JSON object in model response")
	ErrEmptyResponse = errors.New("empty model response")
	jsonObject       = regexp.MustCompile(`\{[^}]+\}`)
)

// Settings selects and configures a provider.
type Settings struct {
	OllamaHost      string
	OllamaModel     string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GeminiAPIKey    string
	GeminiModel     string
}

// New picks the first configured provider in the order Ollama, Anthropic,
// OpenAI, Gemini and wraps it so any provider failure falls back to the
// keyword rules. With nothing configured the rules are used directly.
func New(ctx context.Context, s Settings, logger *slog.Logger) (Classifier, error) {
	rules := NewRules()

	var primary Classifier
	switch {
	case s.OllamaHost != "":
		primary = NewOllama(s.OllamaHost, s.OllamaModel)
	case s.AnthropicAPIKey != "":
		primary = NewAnthropic(s.AnthropicAPIKey)
	case s.OpenAIAPIKey != "":
		primary = NewOpenAI(s.OpenAIAPIKey)
	case s.GeminiAPIKey != "":
		g, err := NewGemini(ctx, s.GeminiAPIKey, s.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("create gemini classifier: %w", err)
		}
		primary = g
	default:
		logger.Info("No LLM provider configured, using keyword rules")
		return rules, nil
	}

	logger.Info("Classifier configured", "provider", primary.Name())
	return WithFallback(primary, rules, logger), nil
}

// BuildPrompt renders the Spanish classification prompt.
func BuildPrompt(tx Transaction, corrections []core.Correction) string {
	var cats strings.Builder
	for i, c := range core.Categories {
		if i > 0 {
			cats.WriteString("\n")
		}
		fmt.Fprintf(&cats, "- %s: %s", c.Name, strings.Join(c.Subcategories, ", "))
	}

	corr := "Ninguna"
	if len(corrections) > 0 {
		var b strings.Builder
		for i, c := range corrections {
			if i == maxPromptCorrections {
				break
			}
			if i > 0 {
				b.WriteString("\n")
			}
			sub := ""
			if c.Subcategory != nil {
				sub = *c.Subcategory
			}
			fmt.Fprintf(&b, "- '%s' → %s/%s", c.Pattern, c.Category, sub)
		}
		corr = b.String()
	}

	return fmt.Sprintf(`Eres un clasificador de gastos bancarios. Analiza la descripción del movimiento y devuelve la categoría y subcategoría más apropiada.

Categorías disponibles:
%s

Correcciones previas del usuario (usa estas como referencia prioritaria):
%s

Movimiento a clasificar:
Descripción: %s
Importe: %s€

Responde SOLO con un JSON válido:
{"category": "Categoría", "subcategory": "Subcategoría"}
`, cats.String(), corr, tx.Description, tx.Amount.String())
}

// ParseResponse extracts the first flat JSON object from a model reply.
// A missing category becomes the default one.
func ParseResponse(content string) (core.Classification, error) {
	if strings.TrimSpace(content) == "" {
		return core.Classification{}, ErrEmptyResponse
	}
	match := jsonObject.FindString(content)
	if match == "" {
		return core.Classification{}, ErrNoJSON
	}

	var data struct {
		Category    *string `json:"category"`
		Subcategory *string `json:"subcategory"`
	}
	if err := json.Unmarshal([]byte(match), &data); err != nil {
		return core.Classification{}, fmt.Errorf("decode model JSON: %w", err)
	}

	c := core.Classification{Category: core.DefaultCategory}
	if data.Category != nil && strings.TrimSpace(*data.Category) != "" {
		c.Category = strings.TrimSpace(*data.Category)
	}
	if data.Subcategory != nil {
		c.Subcategory = strings.TrimSpace(*data.Subcategory)
	}
	return c, nil
}
