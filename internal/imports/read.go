package imports

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// table is a header plus data records, as read from any source format.
type table struct {
	header []string
	rows   [][]string
	// excelDates is set when numeric cells may be spreadsheet date serials.
	excelDates bool
}

const headerScanRows = 20

var delimiters = []rune{',', ';', '\t', '|'}

// csvDecoders are tried in order until one yields text that parses.
var csvDecoders = []struct {
	name string
	enc  encoding.Encoding
}{
	{"utf-8", unicode.UTF8BOM},
	{"windows-1252", charmap.Windows1252},
	{"iso-8859-1", charmap.ISO8859_1},
}

func readCSV(r io.Reader) (table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return table{}, fmt.Errorf("read csv: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return table{}, ErrEmptyFile
	}

	var lastErr error
	for _, dec := range csvDecoders {
		text, err := decodeText(raw, dec.enc)
		if err != nil {
			lastErr = fmt.Errorf("decode %s: %w", dec.name, err)
			continue
		}
		records, err := parseDelimited(text)
		if err != nil {
			lastErr = fmt.Errorf("parse csv as %s: %w", dec.name, err)
			continue
		}
		return splitHeader(records, false)
	}
	return table{}, lastErr
}

// decodeText converts raw bytes to UTF-8. Invalid UTF-8 or a replacement
// character produced by a single-byte charmap counts as failure so the next
// candidate gets a chance.
func decodeText(raw []byte, enc encoding.Encoding) (string, error) {
	if enc == unicode.UTF8BOM && !utf8.Valid(raw) {
		return "", errors.New("invalid utf-8")
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	if enc != unicode.UTF8BOM && bytes.ContainsRune(out, utf8.RuneError) {
		return "", errors.New("undefined characters")
	}
	return string(out), nil
}

func parseDelimited(text string) ([][]string, error) {
	comma := sniffDelimiter(text)
	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	return records, nil
}

// sniffDelimiter picks the candidate that splits the first lines into the
// most consistent multi-field records.
func sniffDelimiter(text string) rune {
	lines := strings.SplitN(text, "\n", headerScanRows+1)
	if len(lines) > headerScanRows {
		lines = lines[:headerScanRows]
	}
	sample := strings.Join(lines, "\n")

	best, bestScore, bestFields := ',', -1, 0
	for _, d := range delimiters {
		reader := csv.NewReader(strings.NewReader(sample))
		reader.Comma = d
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true

		counts := map[int]int{}
		for {
			rec, err := reader.Read()
			if err != nil {
				break
			}
			if len(rec) > 1 {
				counts[len(rec)]++
			}
		}
		for fields, n := range counts {
			if n > bestScore || (n == bestScore && fields > bestFields) {
				best, bestScore, bestFields = d, n, fields
			}
		}
	}
	return best
}

func readWorkbook(r io.Reader) (table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return table{}, fmt.Errorf("%w: cannot open workbook: %v", ErrUnsupportedFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return table{}, ErrEmptyFile
	}
	records, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return table{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return splitHeader(records, true)
}

// splitHeader skips leading preamble lines (account banners, blank rows) and
// uses the first row about as wide as the widest early row as the header. One
// blank header cell is tolerated.
func splitHeader(records [][]string, excelDates bool) (table, error) {
	width := 0
	for i, rec := range records {
		if i == headerScanRows {
			break
		}
		if n := nonEmpty(rec); n > width {
			width = n
		}
	}
	if width == 0 {
		return table{}, ErrEmptyFile
	}

	threshold := width
	if width > 2 {
		threshold = width - 1
	}
	for i, rec := range records {
		if nonEmpty(rec) < threshold {
			continue
		}
		header := make([]string, len(rec))
		for j, h := range rec {
			header[j] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		}
		var rows [][]string
		for _, data := range records[i+1:] {
			if nonEmpty(data) > 0 {
				rows = append(rows, data)
			}
		}
		return table{header: header, rows: rows, excelDates: excelDates}, nil
	}
	return table{}, ErrEmptyFile
}

func nonEmpty(rec []string) int {
	n := 0
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}
