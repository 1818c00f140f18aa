package core

import (
	"math"
	"strconv"
	"strings"
)

// ParseDecimalToCents converts a decimal cost field to cents. Both dot and
// comma decimal separators are accepted; anything past the second decimal
// digit rounds half-up. Signs are rejected, but zero is a legal amount since
// material or labor cost can be zero on its own (warranty work, parts-only
// jobs).
//
// Examples:
//
//	ParseDecimalToCents("12.34") -> 1234
//	ParseDecimalToCents("12,34") -> 1234
//	ParseDecimalToCents("12.345") -> 1235 (half-up on the third decimal)
//	ParseDecimalToCents("0") -> 0
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, ErrInvalidAmount
	}
	if strings.Contains(frac, ".") {
		return 0, ErrInvalidAmount
	}
	if whole == "" {
		whole = "0"
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return 0, ErrInvalidAmount
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > (math.MaxInt64-100)/100 {
		return 0, ErrInvalidAmount
	}

	// Pad so the first three fractional digits always exist: two cent
	// digits plus the rounding digit.
	frac += "000"
	cents := units*100 + int64(frac[0]-'0')*10 + int64(frac[1]-'0')
	if frac[2] >= '5' {
		cents++
	}
	return cents, nil
}

// digitsOnly reports whether s is entirely ASCII digits. Unicode digits are
// rejected on purpose; the caller indexes bytes.
func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Dollars returns the dollar value as a float64 for display and rate math.
// Use cents for additive calculations to avoid floating-point drift.
func (m Money) Dollars() float64 {
	return float64(m.Cents) / 100.0
}
