package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestExpenseValidate(t *testing.T) {
	good := Expense{Date: NewDate(2025, 1, 1), Description: "MERCADONA", Amount: decimal.RequireFromString("-12.5")}
	if err := good.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bads := []Expense{
		{Date: Date{}, Description: "a"},
		{Date: NewDate(2025, 1, 1), Description: "  "},
		{Date: NewDate(2025, 1, 1), Description: strings.Repeat("x", MaxDescriptionLength+1)},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestExpenseJSONShape(t *testing.T) {
	cat := "Hogar"
	e := Expense{
		ID:          7,
		Date:        NewDate(2025, 3, 9),
		Description: "IBERDROLA",
		Amount:      decimal.RequireFromString("-45.20"),
		Category:    &cat,
		CreatedAt:   time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
	}
	b, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["date"] != "2025-03-09" {
		t.Errorf("date = %v, want 2025-03-09", raw["date"])
	}
	if amount, ok := raw["amount"].(float64); !ok || amount != -45.2 {
		t.Errorf("amount = %#v, want JSON number -45.2", raw["amount"])
	}
	if raw["category"] != "Hogar" {
		t.Errorf("category = %v", raw["category"])
	}
	if v, present := raw["subcategory"]; !present || v != nil {
		t.Errorf("subcategory should be null, got %v (present=%v)", v, present)
	}
	if raw["is_corrected"] != false {
		t.Errorf("is_corrected = %v", raw["is_corrected"])
	}
}

func TestDateUnmarshalAcceptsTimestamps(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2025-01-05T00:00:00"`), &d); err != nil {
		t.Fatal(err)
	}
	if d.String() != "2025-01-05" {
		t.Fatalf("got %s", d)
	}
	if err := json.Unmarshal([]byte(`"05/01/2025"`), &d); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestExpenseUpdateValidate(t *testing.T) {
	if err := (ExpenseUpdate{}).Validate(); !errors.Is(err, ErrEmptyUpdate) {
		t.Fatalf("expected ErrEmptyUpdate, got %v", err)
	}
	if err := (ExpenseUpdate{Category: StringPtr(" ")}).Validate(); !errors.Is(err, ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}
	if err := (ExpenseUpdate{Subcategory: StringPtr("Farmacia")}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExpenseUpdateNormalize(t *testing.T) {
	if u := (ExpenseUpdate{Category: StringPtr(""), Subcategory: StringPtr(" \t")}).Normalize(); !u.IsEmpty() {
		t.Fatalf("blank fields kept: %+v", u)
	}
	u := ExpenseUpdate{Category: StringPtr(" Ocio "), Subcategory: StringPtr(" ")}.Normalize()
	if u.Category == nil || *u.Category != "Ocio" || u.Subcategory != nil {
		t.Fatalf("unexpected normalized update %+v", u)
	}
}

func TestCorrectionPattern(t *testing.T) {
	long := strings.Repeat("Ñ", 150)
	got := CorrectionPattern(long)
	if n := len([]rune(got)); n != 100 {
		t.Fatalf("pattern has %d runes, want 100", n)
	}
	if got != strings.Repeat("ñ", 100) {
		t.Fatalf("pattern not lowercased")
	}
	if CorrectionPattern("COMPRA Mercadona") != "compra mercadona" {
		t.Fatal("short pattern mismatch")
	}
}

func TestKPIFilter(t *testing.T) {
	f := KPIFilter{Year: IntPtr(2025), Month: IntPtr(2)}
	if err := f.Validate(); err != nil {
		t.Fatal(err)
	}
	if !f.Matches(NewDate(2025, 2, 28)) || f.Matches(NewDate(2024, 2, 1)) || f.Matches(NewDate(2025, 3, 1)) {
		t.Fatal("Matches returned unexpected result")
	}
	if (KPIFilter{Month: IntPtr(13)}).Validate() == nil {
		t.Fatal("expected invalid month")
	}
	if got := (KPIFilter{Month: IntPtr(4)}).Key(); got != "kpis:*-04" {
		t.Fatalf("Key() = %s", got)
	}
	if got := (KPIFilter{}).Key(); got != "kpis:*-*" {
		t.Fatalf("Key() = %s", got)
	}
}

func TestCategoryLabel(t *testing.T) {
	if (Expense{}).CategoryLabel() != Uncategorized {
		t.Fatal("nil category should be uncategorized")
	}
	if (Expense{Category: StringPtr("Ocio")}).CategoryLabel() != "Ocio" {
		t.Fatal("category label mismatch")
	}
	if len(CategoryNames()) != 9 || !IsKnownCategory("Finanzas") || IsKnownCategory("Viajes") {
		t.Fatal("taxonomy mismatch")
	}
}
