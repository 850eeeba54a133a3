package dashboard

import (
	"fmt"
	"html/template"

	"gastos/internal/core"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

var (
	shortMonths = [12]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sept", "oct", "nov", "dic"}

	// es-ES groups thousands only from five integer digits up, and keeps the
	// sign on the amount with a no-break space before it.
	euroFormatter        = money.NewFormatter(2, ",", "", "€", "1\u00a0$")
	euroGroupedFormatter = money.NewFormatter(2, ",", ".", "€", "1\u00a0$")
	groupingThreshold    = int64(10000 * 100)
)

// FormatAmount renders an amount the es-ES way: "-42,10 €", "12.345,00 €",
// with U+00A0 before the symbol.
func FormatAmount(d decimal.Decimal) string {
	cur := money.GetCurrency(money.EUR)
	factor := decimal.New(1, int32(cur.Fraction))
	m := money.New(d.Mul(factor).Round(0).IntPart(), money.EUR)

	f := euroFormatter
	if m.Absolute().Amount() >= groupingThreshold {
		f = euroGroupedFormatter
	}
	return f.Format(m.Amount())
}

// FormatDate renders a date as "05 ene 2025".
func FormatDate(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%02d %s %d", d.Day(), shortMonths[d.Month()-1], d.Year())
}

// FuncMap exposes the formatters to templates.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"amount":   FormatAmount,
		"date":     FormatDate,
		"category": func(e core.Expense) string { return e.CategoryLabel() },
	}
}
