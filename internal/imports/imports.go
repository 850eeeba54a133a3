// Package imports turns bank exports (CSV, XLSX, XLS) into normalized rows
// ready to be classified and stored.
package imports

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gastos/internal/core"

	"github.com/shopspring/decimal"
)

var (
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrMissingColumns  = errors.New("could not detect required columns")
	ErrEmptyFile       = errors.New("file has no data rows")
)

// Row is one usable movement extracted from a file.
type Row struct {
	Date        core.Date
	Description string
	Amount      decimal.Decimal
}

// Result is the outcome of parsing a file.
type Result struct {
	Rows    []Row
	Columns Columns
	// Skipped counts data rows dropped for empty or unparseable fields.
	Skipped int
}

// Format identifies how a file is read.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// DetectFormat maps a filename to its format by extension.
func DetectFormat(filename string) (Format, error) {
	if strings.TrimSpace(filename) == "" {
		return "", fmt.Errorf("%w: missing filename", ErrUnsupportedFile)
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Ext(filename))
	}
}

// Parser reads files into rows. The zero value is not usable; call NewParser.
type Parser struct {
	sanitize func(string) string
}

func NewParser() *Parser {
	return &Parser{sanitize: newSanitizer()}
}

// Parse reads the whole file, detects its columns and normalizes every row.
func (p *Parser) Parse(filename string, r io.Reader) (Result, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return Result{}, err
	}

	var t table
	switch format {
	case FormatCSV:
		t, err = readCSV(r)
	default:
		t, err = readWorkbook(r)
	}
	if err != nil {
		return Result{}, err
	}
	if len(t.rows) == 0 {
		return Result{}, ErrEmptyFile
	}

	cols, err := DetectColumns(t)
	if err != nil {
		return Result{}, err
	}

	res := Result{Columns: cols}
	for _, record := range t.rows {
		row, ok := p.normalize(record, cols, t.excelDates)
		if !ok {
			res.Skipped++
			continue
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

func (p *Parser) normalize(record []string, cols Columns, excelDates bool) (Row, bool) {
	rawDate := cell(record, cols.Date)
	rawDesc := cell(record, cols.Description)
	rawAmount := cell(record, cols.Amount)
	if rawDate == "" || rawDesc == "" || rawAmount == "" {
		return Row{}, false
	}

	date, err := ParseDate(rawDate, excelDates)
	if err != nil {
		return Row{}, false
	}
	amount, err := core.ParseAmount(rawAmount)
	if err != nil {
		return Row{}, false
	}
	desc := p.sanitize(rawDesc)
	if desc == "" {
		return Row{}, false
	}
	if runes := []rune(desc); len(runes) > core.MaxDescriptionLength {
		desc = string(runes[:core.MaxDescriptionLength])
	}

	return Row{Date: date, Description: desc, Amount: amount}, true
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	v := strings.TrimSpace(record[idx])
	switch strings.ToLower(v) {
	case "nan", "null", "none", "nat":
		return ""
	}
	return v
}
