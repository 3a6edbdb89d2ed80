package core

// Money parsing and formatting. Amounts become integer cents at the input
// boundary and turn back into two-decimal strings only on output.

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxCents bounds every amount accepted at an input boundary: one trillion
// currency units.
const MaxCents int64 = 1_000_000_000_000 * 100

// ParseAmount converts a decimal string to money, rounding to cents half away
// from zero. It accepts both dot (12.34) and comma (12,34) separators and an
// optional sign; sign checks belong to the validators. Amounts beyond
// MaxCents are rejected instead of being truncated.
//
// Examples:
//
//	ParseAmount("12.34")  -> 12.34
//	ParseAmount("12,345") -> 12.35
//	ParseAmount("-0.5")   -> -0.50
func ParseAmount(s string) (Money, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	cents := d.Shift(2).Round(0)
	if cents.Abs().GreaterThan(maxCentsDecimal) {
		return Money{}, fmt.Errorf("%w: %s exceeds %s", ErrInvalidAmount, s, Money{Cents: MaxCents})
	}
	return Money{Cents: cents.IntPart()}, nil
}

var maxCentsDecimal = decimal.NewFromInt(MaxCents)

// Cents is a shorthand constructor.
func Cents(c int64) Money {
	return Money{Cents: c}
}

// AmountFromStored reads an amount column value (stored as integer cents).
// NULL, unparsable and out-of-range values yield zero instead of an error.
func AmountFromStored(v any) Money {
	m := amountFromStored(v)
	if m.Cents > MaxCents || m.Cents < -MaxCents {
		return Money{}
	}
	return m
}

func amountFromStored(v any) Money {
	switch val := v.(type) {
	case nil:
		return Money{}
	case int64:
		return Money{Cents: val}
	case int:
		return Money{Cents: int64(val)}
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return Money{}
		}
		if math.Abs(val) > float64(MaxCents) {
			return Money{}
		}
		return Money{Cents: int64(math.Round(val))}
	case []byte:
		return amountFromStored(string(val))
	case string:
		c, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return Money{}
		}
		return Money{Cents: c}
	default:
		return Money{}
	}
}

// Decimal returns the amount in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// CheckedAdd returns m+o, or false when the sum leaves the int64 range.
func (m Money) CheckedAdd(o Money) (Money, bool) {
	sum := m.Cents + o.Cents
	if (o.Cents > 0 && sum < m.Cents) || (o.Cents < 0 && sum > m.Cents) {
		return Money{}, false
	}
	return Money{Cents: sum}, true
}

// saturatingAdd returns m+o clamped to the int64 range.
func (m Money) saturatingAdd(o Money) Money {
	if sum, ok := m.CheckedAdd(o); ok {
		return sum
	}
	if o.Cents > 0 {
		return Money{Cents: math.MaxInt64}
	}
	return Money{Cents: math.MinInt64}
}

// saturatingSub returns m-o clamped to the int64 range.
func (m Money) saturatingSub(o Money) Money {
	diff := m.Cents - o.Cents
	if (o.Cents > 0 && diff > m.Cents) || (o.Cents < 0 && diff < m.Cents) {
		if o.Cents > 0 {
			return Money{Cents: math.MinInt64}
		}
		return Money{Cents: math.MaxInt64}
	}
	return Money{Cents: diff}
}

// IsPositive reports whether the amount is strictly greater than zero.
func (m Money) IsPositive() bool {
	return m.Cents > 0
}

// String formats the amount with exactly two decimals, e.g. "-12.30".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string. The literal is
// parsed as a decimal, never through float64, then rounded to cents.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Money{}
		return nil
	}
	s := strings.Trim(string(data), `"`)
	if strings.TrimSpace(s) == "" {
		*m = Money{}
		return nil
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
