package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a fixed-point money value with two fractional digits, stored in cents.
type Amount int64

// Cents builds an Amount from a whole number of cents.
func Cents(c int64) Amount {
	return Amount(c)
}

var (
	maxCents = decimal.NewFromInt(math.MaxInt64)
	minCents = decimal.NewFromInt(math.MinInt64)
)

// ParseAmount parses a decimal string such as "50", "50.5" or "12.345".
// Digits beyond the second fractional place are rounded half away from zero.
// Values that do not fit in an Amount are rejected.
func ParseAmount(raw string) (Amount, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, fmt.Errorf("%w: empty amount", ErrInvalidInput)
	}
	if strings.ContainsAny(value, "eE") {
		return 0, fmt.Errorf("%w: invalid amount %q", ErrInvalidInput, raw)
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid amount %q: %w", ErrInvalidInput, raw, err)
	}
	cents := d.Round(2).Shift(2)
	if cents.GreaterThan(maxCents) || cents.LessThan(minCents) {
		return 0, fmt.Errorf("%w: amount %q is out of range", ErrInvalidInput, raw)
	}
	return Amount(cents.IntPart()), nil
}

// MustParseAmount is ParseAmount for literals known to be valid.
func MustParseAmount(raw string) Amount {
	amount, err := ParseAmount(raw)
	if err != nil {
		panic(err)
	}
	return amount
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return a + b
}

// String renders the amount with exactly two decimals, e.g. "335.00".
func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Float returns the amount in major units. Only for display formatting.
func (a Amount) Float() float64 {
	return float64(a) / 100
}

// MarshalJSON encodes the amount as a decimal string to avoid float drift.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts either a decimal string or a JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		raw = string(data)
	}
	parsed, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
