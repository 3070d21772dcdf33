// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from strings
// and converting between decimal and cent representations.
package core

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Money is a currency amount with two-decimal precision.
type Money struct {
	Amount decimal.Decimal
}

// NewMoneyFromCents builds a Money value from integer cents.
func NewMoneyFromCents(cents int64) Money {
	return Money{Amount: decimal.New(cents, -2)}
}

// ParseAmount converts a decimal string to Money with half-up rounding.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and rounds
// on the third decimal place. Returns ErrInvalidAmount for invalid formats,
// signed values, or zero amounts.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,34")  -> 12.34
//	ParseAmount("12.345") -> 12.35
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	// Only unsigned digits with at most one separator
	seenDot := false
	for _, r := range s {
		switch {
		case r == '.' && !seenDot:
			seenDot = true
		case unicode.IsDigit(r):
		default:
			return Money{}, ErrInvalidAmount
		}
	}
	if s == "." {
		return Money{}, ErrInvalidAmount
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(s, "."))
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	m := Money{Amount: d.Round(2)}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

func (m Money) Validate() error {
	if !m.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// Cents returns the amount in integer cents.
func (m Money) Cents() int64 {
	return m.Amount.Shift(2).Round(0).IntPart()
}

// Add returns m + o.
func (m Money) Add(o Money) Money {
	return Money{Amount: m.Amount.Add(o.Amount)}
}

// Equal compares amounts numerically.
func (m Money) Equal(o Money) bool {
	return m.Amount.Equal(o.Amount)
}

// String formats the amount with two decimals ("12.30").
func (m Money) String() string {
	return m.Amount.StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		// Plain JSON numbers are accepted too
		raw = string(data)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return ErrInvalidAmount
	}
	m.Amount = d
	return nil
}
