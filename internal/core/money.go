// Package core provides the ledger's domain types and money handling utilities.
//
// This file contains the helpers used to parse user supplied amounts and to
// bring decimal values to cent precision with an explicit rounding policy.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ParseAmount converts a decimal string to an exact Decimal.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional leading sign, since refunds are recorded as negative expenses.
// Returns ErrInvalidAmount for empty or malformed input.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("-5")    -> -5, nil
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")

	body := strings.TrimLeft(s, "+-")
	if len(s)-len(body) > 1 || body == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	dots := 0
	for _, r := range body {
		switch {
		case r == '.':
			dots++
		case !unicode.IsDigit(r):
			return decimal.Zero, ErrInvalidAmount
		}
	}
	if dots > 1 || body == "." {
		return decimal.Zero, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FloorCents truncates d to cent precision, always rounding toward negative
// infinity: FloorCents(22.589) == 22.58 and FloorCents(-1.001) == -1.01.
func FloorCents(d decimal.Decimal) decimal.Decimal {
	return d.RoundFloor(2)
}

// FloorDivCents returns floor(a / b * 100) / 100 computed without any
// intermediate rounding. b must be positive.
func FloorDivCents(a, b decimal.Decimal) decimal.Decimal {
	q, r := a.Mul(hundred).QuoRem(b, 0)
	if r.Sign() < 0 {
		q = q.Sub(decimal.NewFromInt(1))
	}
	return q.Div(hundred)
}

// RoundCents rounds d to 2 decimal places, half away from zero.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatCurrency renders d as a dollar amount with two decimals ("$12.30", "-$4.00").
func FormatCurrency(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Neg().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}
