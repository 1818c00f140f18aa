package http

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"flotta/internal/core"
)

// parseID parses a positive decimal identifier from a path segment or form
// value.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// parseOptionalDate parses a YYYY-MM-DD form value, mapping the empty string
// to the zero date. Optional date columns use the zero value for "not set".
func parseOptionalDate(s string) (core.Date, error) {
	if strings.TrimSpace(s) == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(s)
}

// parseMonthValue parses a month input value (YYYY-MM, as submitted by
// <input type="month">) into the first day of that month. A full YYYY-MM-DD
// value is accepted and truncated.
func parseMonthValue(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01", s); err == nil {
		return core.Date{Time: t}, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, err
	}
	return d.MonthStart(), nil
}

// monthLabel renders a month date as "January 2026" for display.
func monthLabel(d core.Date) string {
	return fmt.Sprintf("%s %d", time.Month(d.Month()), d.Year())
}

// formatDollars formats cents as a dollar currency string (e.g., "$12.34").
func formatDollars(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	dollars := cents / 100
	rem := cents % 100
	s := strconv.FormatInt(dollars, 10) + "." + fmt.Sprintf("%02d", rem)
	if neg {
		return "-$" + s
	}
	return "$" + s
}

// formatMiles renders an odometer reading with thousands separators.
func formatMiles(miles int64) string {
	neg := miles < 0
	if neg {
		miles = -miles
	}
	s := strconv.FormatInt(miles, 10)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		return "-" + s
	}
	return s
}

// sanitizeInput trims whitespace and drops control characters, keeping tab
// and newline so multi-line descriptions survive.
func sanitizeInput(s string) string {
	drop := func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r < 32:
			return -1
		}
		return r
	}
	return strings.Map(drop, strings.TrimSpace(s))
}
