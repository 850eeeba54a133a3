package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers on the wire.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	// DateLayout is the ISO date layout used on the wire and in storage.
	DateLayout = "2006-01-02"

	// Uncategorized is the KPI bucket and badge label for expenses without a category.
	Uncategorized = "Sin categoría"

	MaxDescriptionLength = 500
	correctionPatternLen = 100
)

type (
	Date struct {
		time.Time
	}

	// Expense is a single imported bank movement. A negative amount is a
	// spending, a non-negative one is income.
	Expense struct {
		ID          int64           `json:"id"`
		Date        Date            `json:"date"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Category    *string         `json:"category"`
		Subcategory *string         `json:"subcategory"`
		IsCorrected bool            `json:"is_corrected"`
		CreatedAt   time.Time       `json:"created_at"`
		UpdatedAt   time.Time       `json:"updated_at"`
	}

	// ExpenseUpdate is a partial update; nil fields are left untouched.
	ExpenseUpdate struct {
		Category    *string `json:"category,omitempty"`
		Subcategory *string `json:"subcategory,omitempty"`
	}

	// ExpenseFilter narrows a listing. Zero Limit means the default page size.
	ExpenseFilter struct {
		Skip      int
		Limit     int
		Category  *string
		StartDate *Date
		EndDate   *Date
	}

	// Correction remembers a manual categorization so later imports can learn from it.
	Correction struct {
		ID          int64     `json:"id"`
		Pattern     string    `json:"description_pattern"`
		Category    string    `json:"category"`
		Subcategory *string   `json:"subcategory"`
		UsageCount  int       `json:"usage_count"`
		CreatedAt   time.Time `json:"created_at"`
	}

	Classification struct {
		Category    string `json:"category"`
		Subcategory string `json:"subcategory"`
		// Provisional marks a stand-in answer given while the preferred
		// classifier was unavailable.
		Provisional bool `json:"-"`
	}

	KPISummary struct {
		Total      decimal.Decimal            `json:"total"`
		ByCategory map[string]decimal.Decimal `json:"by_category"`
		ByMonth    map[string]decimal.Decimal `json:"by_month"`
		Count      int                        `json:"count"`
	}

	// KPIFilter scopes a summary; nil fields mean all time.
	KPIFilter struct {
		Year  *int
		Month *int
	}

	ImportResult struct {
		Imported int       `json:"imported"`
		Expenses []Expense `json:"expenses"`
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrInvalidYear      = errors.New("invalid year")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrEmptyUpdate      = errors.New("update has no fields")
	ErrInvalidPage      = errors.New("invalid pagination")
	ErrNotFound         = errors.New("expense not found")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO date (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// MonthKey returns the YYYY-MM bucket the date belongs to.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	// Accept full timestamps as well as plain dates.
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Description) == "" {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(e.Description) > MaxDescriptionLength {
		return fmt.Errorf("description too long (max %d characters)", MaxDescriptionLength)
	}
	return nil
}

// IsIncome reports whether the amount is non-negative.
func (e Expense) IsIncome() bool {
	return !e.Amount.IsNegative()
}

// CategoryLabel returns the category or the uncategorized label.
func (e Expense) CategoryLabel() string {
	if e.Category == nil || *e.Category == "" {
		return Uncategorized
	}
	return *e.Category
}

// Normalize drops blank fields. A blank value leaves the stored one as is.
func (u ExpenseUpdate) Normalize() ExpenseUpdate {
	return ExpenseUpdate{Category: nonBlank(u.Category), Subcategory: nonBlank(u.Subcategory)}
}

// IsEmpty reports whether the update changes nothing.
func (u ExpenseUpdate) IsEmpty() bool {
	return u.Category == nil && u.Subcategory == nil
}

func nonBlank(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// Validate is for callers that treat an update with nothing to change as a
// mistake, such as the command line.
func (u ExpenseUpdate) Validate() error {
	if u.Category == nil && u.Subcategory == nil {
		return ErrEmptyUpdate
	}
	if u.Category != nil && strings.TrimSpace(*u.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// CorrectionPattern derives the lookup key stored for a manual correction:
// the lowercased description truncated to its first 100 characters.
func CorrectionPattern(description string) string {
	runes := []rune(strings.ToLower(description))
	if len(runes) > correctionPatternLen {
		runes = runes[:correctionPatternLen]
	}
	return string(runes)
}

func (f KPIFilter) Validate() error {
	if f.Year != nil && (*f.Year < 1900 || *f.Year > 9999) {
		return fmt.Errorf("%w: %d", ErrInvalidYear, *f.Year)
	}
	if f.Month != nil && (*f.Month < 1 || *f.Month > 12) {
		return fmt.Errorf("%w: %d", ErrInvalidMonth, *f.Month)
	}
	return nil
}

// Key returns a stable cache key for the filter.
func (f KPIFilter) Key() string {
	year, month := "*", "*"
	if f.Year != nil {
		year = fmt.Sprintf("%04d", *f.Year)
	}
	if f.Month != nil {
		month = fmt.Sprintf("%02d", *f.Month)
	}
	return "kpis:" + year + "-" + month
}

// Matches reports whether a date falls inside the filter scope.
func (f KPIFilter) Matches(d Date) bool {
	if f.Year != nil && d.Year() != *f.Year {
		return false
	}
	if f.Month != nil && int(d.Month()) != *f.Month {
		return false
	}
	return true
}

// NewKPISummary returns an empty summary with initialized maps.
func NewKPISummary() KPISummary {
	return KPISummary{
		Total:      decimal.Zero,
		ByCategory: map[string]decimal.Decimal{},
		ByMonth:    map[string]decimal.Decimal{},
	}
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// IntPtr returns a pointer to i.
func IntPtr(i int) *int {
	return &i
}
