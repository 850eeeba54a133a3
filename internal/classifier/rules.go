package classifier

import (
	"context"
	"strings"

	"gastos/internal/core"
)

type keywordRule struct {
	category string
	keywords []string
}

// Checked in order, first substring hit wins.
var defaultRules = []keywordRule{
	{"Alimentación", []string{"mercadona", "carrefour", "lidl", "aldi", "supermercado", "restaurante"}},
	{"Transporte", []string{"repsol", "cepsa", "bp", "gasolina", "parking", "renfe", "metro"}},
	{"Hogar", []string{"iberdrola", "endesa", "naturgy", "agua", "luz", "gas"}},
	{"Salud", []string{"farmacia", "medico", "clinica", "hospital"}},
	{"Ocio", []string{"netflix", "spotify", "amazon prime", "cine", "teatro"}},
	{"Finanzas", []string{"transferencia", "comision", "seguro"}},
}

// Rules classifies by keyword and never fails.
type Rules struct {
	rules []keywordRule
}

func NewRules() *Rules {
	return &Rules{rules: defaultRules}
}

func (r *Rules) Name() string { return ProviderRules }

func (r *Rules) Classify(_ context.Context, tx Transaction, _ []core.Correction) (core.Classification, error) {
	desc := strings.ToLower(tx.Description)
	for _, rule := range r.rules {
		for _, kw := range rule.keywords {
			if strings.Contains(desc, kw) {
				return core.Classification{Category: rule.category}, nil
			}
		}
	}
	if tx.Amount.IsPositive() {
		return core.Classification{Category: core.IncomeCategory, Subcategory: core.DefaultIncomeCategory}, nil
	}
	return core.Classification{Category: core.DefaultCategory, Subcategory: core.DefaultSubcategory}, nil
}
