// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts as they appear
// in bank exports and for rounding aggregated figures.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

var amountNoise = strings.NewReplacer(
	"€", "",
	"EUR", "",
	"eur", "",
	"$", "",
	" ", "",
	"\u00a0", "",
	"'", "",
)

// ParseAmount converts a bank-export amount string to a decimal.
//
// It accepts European and US separators. When both '.' and ',' appear the
// last one is the decimal separator. A lone separator is decimal, a repeated
// one groups thousands. Currency symbols and spaces are stripped.
//
// Examples:
//
//	ParseAmount("-12,50 €")   -> -12.50
//	ParseAmount("1.234,56")   -> 1234.56
//	ParseAmount("1,234.56")   -> 1234.56
//	ParseAmount("1.234.567")  -> 1234567
func ParseAmount(s string) (decimal.Decimal, error) {
	s = amountNoise.Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.TrimPrefix(s, "+")

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// LooksNumeric reports whether s is a plain number once currency symbols,
// commas and spaces are removed. Used to sniff amount columns.
func LooksNumeric(s string) bool {
	s = strings.NewReplacer("€", "", "$", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return false
	}
	_, err := decimal.NewFromString(s)
	return err == nil
}

// Round2 rounds half away from zero to two decimals.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// ToCents converts an amount to integer cents, rounding to the nearest cent.
func ToCents(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
