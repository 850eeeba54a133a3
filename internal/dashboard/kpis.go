package dashboard

import (
	"fmt"
	"html/template"
	"sort"
	"strings"

	"gastos/internal/core"

	"github.com/shopspring/decimal"
)

const topCategories = 3

// chartColors cycle across category slices.
var chartColors = []string{"#10b981", "#3b82f6", "#f59e0b", "#f43f5e", "#8b5cf6", "#ec4899", "#06b6d4", "#84cc16"}

type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
}

// Cards are the figures shown above the charts.
type Cards struct {
	Total   decimal.Decimal
	Count   int
	Average decimal.Decimal
	// HasAverage is false when there is nothing to divide by.
	HasAverage bool
	Top        []CategoryAmount
}

// BuildCards derives the KPI cards from a summary. The average is only
// computed when count is positive.
func BuildCards(k core.KPISummary) Cards {
	c := Cards{Total: k.Total, Count: k.Count, Average: decimal.Zero}
	if k.Count > 0 {
		c.Average = k.Total.DivRound(decimal.NewFromInt(int64(k.Count)), 2)
		c.HasAverage = true
	}
	c.Top = sortedCategories(k.ByCategory)
	if len(c.Top) > topCategories {
		c.Top = c.Top[:topCategories]
	}
	return c
}

// sortedCategories orders by amount descending, then by name.
func sortedCategories(m map[string]decimal.Decimal) []CategoryAmount {
	out := make([]CategoryAmount, 0, len(m))
	for name, amount := range m {
		out = append(out, CategoryAmount{Name: name, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Slice is one category of the breakdown chart.
type Slice struct {
	Name    string
	Amount  decimal.Decimal
	Share   float64
	Percent int
	Color   string
}

// Bar is one month of the trend chart.
type Bar struct {
	Key    string
	Label  string
	Amount decimal.Decimal
	// Height is relative to the largest month, 0..100.
	Height int
}

type Charts struct {
	Categories []Slice
	Monthly    []Bar
}

// ShowCategories is false when there is no spending to break down.
func (c Charts) ShowCategories() bool {
	return len(c.Categories) > 0
}

// ShowMonthly is true only with more than one month of data.
func (c Charts) ShowMonthly() bool {
	return len(c.Monthly) > 1
}

// PieStyle renders the category breakdown as a CSS conic gradient. Every
// part of the value is generated here from numbers and fixed colors.
func (c Charts) PieStyle() template.CSS {
	if len(c.Categories) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("background: conic-gradient(")
	var from float64
	for i, s := range c.Categories {
		to := from + s.Share*100
		if i == len(c.Categories)-1 {
			to = 100
		}
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %.2f%% %.2f%%", s.Color, from, to)
		from = to
	}
	b.WriteString(")")
	return template.CSS(b.String())
}

// BuildCharts derives both charts from a summary.
func BuildCharts(k core.KPISummary) Charts {
	var charts Charts

	cats := sortedCategories(k.ByCategory)
	sum := decimal.Zero
	for _, c := range cats {
		sum = sum.Add(c.Amount)
	}
	for i, c := range cats {
		share := 0.0
		if sum.IsPositive() {
			share = c.Amount.Div(sum).InexactFloat64()
		}
		charts.Categories = append(charts.Categories, Slice{
			Name:    c.Name,
			Amount:  c.Amount,
			Share:   share,
			Percent: int(share*100 + 0.5),
			Color:   chartColors[i%len(chartColors)],
		})
	}

	keys := make([]string, 0, len(k.ByMonth))
	for key := range k.ByMonth {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	peak := decimal.Zero
	for _, key := range keys {
		if v := k.ByMonth[key]; v.GreaterThan(peak) {
			peak = v
		}
	}
	for _, key := range keys {
		amount := k.ByMonth[key]
		height := 0
		if peak.IsPositive() {
			height = int(amount.Div(peak).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
		}
		charts.Monthly = append(charts.Monthly, Bar{Key: key, Label: MonthLabel(key), Amount: amount, Height: height})
	}
	return charts
}

// MonthLabel turns a "YYYY-MM" key into "MM/YY".
func MonthLabel(key string) string {
	year, month, ok := strings.Cut(key, "-")
	if !ok || len(year) < 2 {
		return key
	}
	return month + "/" + year[len(year)-2:]
}

func copyAmounts(m map[string]decimal.Decimal) map[string]decimal.Decimal {
	if m == nil {
		return nil
	}
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
