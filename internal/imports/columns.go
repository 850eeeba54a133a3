package imports

import (
	"fmt"
	"strings"
	"unicode"

	"gastos/internal/core"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	datePatterns = []string{
		"fecha", "date", "f.valor", "f.operacion", "fecha_operacion",
		"fecha_valor", "f. valor", "f. operacion", "data",
	}
	descriptionPatterns = []string{
		"concepto", "descripcion", "description", "detalle", "movimiento",
		"comercio", "beneficiario", "pagador", "texto", "referencia",
	}
	amountPatterns = []string{
		"importe", "cantidad", "amount", "monto", "valor", "total",
		"cargo", "abono", "saldo", "euros", "eur",
	}
)

const (
	sampleSize        = 100
	sampleThreshold   = 0.8
	minDescriptionLen = 10
	minReverseMatch   = 3
)

// Columns holds the index of each required column, -1 when unknown.
type Columns struct {
	Date        int
	Description int
	Amount      int
}

func (c Columns) complete() bool {
	return c.Date >= 0 && c.Description >= 0 && c.Amount >= 0
}

func (c Columns) taken(idx int) bool {
	return idx == c.Date || idx == c.Description || idx == c.Amount
}

// DetectColumns finds the date, description and amount columns, first by
// header name and then, for whatever is still missing, by content.
func DetectColumns(t table) (Columns, error) {
	cols := Columns{Date: -1, Description: -1, Amount: -1}

	normalized := make([]string, len(t.header))
	for i, h := range t.header {
		normalized[i] = normalizeHeader(h)
	}
	cols.Date = findColumn(normalized, datePatterns, cols)
	cols.Description = findColumn(normalized, descriptionPatterns, cols)
	cols.Amount = findColumn(normalized, amountPatterns, cols)

	if !cols.complete() {
		cols = detectByContent(t, cols)
	}
	if !cols.complete() {
		var missing []string
		if cols.Date < 0 {
			missing = append(missing, "date")
		}
		if cols.Description < 0 {
			missing = append(missing, "description")
		}
		if cols.Amount < 0 {
			missing = append(missing, "amount")
		}
		return cols, fmt.Errorf("%w: %s (columns: %s)", ErrMissingColumns, strings.Join(missing, ", "), strings.Join(t.header, ", "))
	}
	return cols, nil
}

// normalizeHeader lowercases, drops accents and keeps only [a-z0-9].
func normalizeHeader(s string) string {
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		stripped = s
	}
	var b strings.Builder
	for _, r := range strings.ToLower(stripped) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func findColumn(normalized []string, patterns []string, cols Columns) int {
	for _, pattern := range patterns {
		np := normalizeHeader(pattern)
		for i, col := range normalized {
			if col == "" || cols.taken(i) {
				continue
			}
			// Very short headers ("a", "id") would be contained in almost
			// any pattern, so the reverse match needs a few characters.
			if strings.Contains(col, np) || (len(col) >= minReverseMatch && strings.Contains(np, col)) {
				return i
			}
		}
	}
	return -1
}

func detectByContent(t table, cols Columns) Columns {
	width := len(t.header)
	for _, r := range t.rows {
		if len(r) > width {
			width = len(r)
		}
	}

	for i := 0; i < width; i++ {
		if cols.taken(i) {
			continue
		}
		sample := columnSample(t.rows, i)
		if len(sample) == 0 {
			continue
		}

		if cols.Date < 0 && ratio(sample, func(v string) bool {
			_, err := ParseDate(v, t.excelDates)
			return err == nil
		}) > sampleThreshold {
			cols.Date = i
			continue
		}

		if cols.Amount < 0 && ratio(sample, core.LooksNumeric) > sampleThreshold {
			cols.Amount = i
			continue
		}

		if cols.Description < 0 && meanLength(sample) > minDescriptionLen {
			cols.Description = i
		}
	}
	return cols
}

func columnSample(rows [][]string, idx int) []string {
	sample := make([]string, 0, sampleSize)
	for _, r := range rows {
		if v := cell(r, idx); v != "" {
			sample = append(sample, v)
			if len(sample) == sampleSize {
				break
			}
		}
	}
	return sample
}

func ratio(sample []string, ok func(string) bool) float64 {
	hits := 0
	for _, v := range sample {
		if ok(v) {
			hits++
		}
	}
	return float64(hits) / float64(len(sample))
}

func meanLength(sample []string) float64 {
	total := 0
	for _, v := range sample {
		total += len([]rune(v))
	}
	return float64(total) / float64(len(sample))
}
