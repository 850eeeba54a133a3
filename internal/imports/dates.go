package imports

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gastos/internal/core"
)

// Day-first layouts, most common Spanish bank formats first.
var dateLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2/1/06",
	"2-1-06",
	"2006-1-2",
	"2006/1/2",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	time.RFC3339,
}

var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// ParseDate reads a day-first date. When excelDates is set, plain numbers
// in a plausible range are read as spreadsheet serial days.
func ParseDate(s string, excelDates bool) (core.Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.NewDate(t.Year(), int(t.Month()), t.Day()), nil
		}
	}
	if excelDates {
		if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= 1 && serial < 2958466 {
			t := excelEpoch.AddDate(0, 0, int(serial))
			return core.NewDate(t.Year(), int(t.Month()), t.Day()), nil
		}
	}
	return core.Date{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
}
