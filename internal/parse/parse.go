// Package parse holds the tolerant text-to-number converters shared by every
// provider. All functions are total over malformed input: they report failure
// through the ok result instead of returning an error or panicking, so the
// numeric semantics are identical no matter which source produced the text.
package parse

import (
	"strconv"
	"strings"
)

var currencySymbols = []string{"$", "₹", "€", "£"}

// Price parses a displayed price such as "$1,234.56" into a float.
// Currency symbols, commas and surrounding whitespace are stripped.
func Price(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	for _, sym := range currencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Percent parses a displayed percentage such as "(1.25%)" into a float.
// The percent sign and any parentheses are stripped.
func Percent(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, "%", "")
	s = strings.ReplaceAll(s, "(", "")
	s = strings.TrimSpace(strings.ReplaceAll(s, ")", ""))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Magnitude parses a volume or market-cap figure with an optional trailing
// K/M/B multiplier (case-insensitive), e.g. "1.2M" -> 1200000. Plain figures
// are parsed with commas stripped.
func Magnitude(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	s = strings.ToUpper(strings.TrimSpace(s))

	multipliers := []struct {
		suffix string
		factor float64
	}{
		{"K", 1e3},
		{"M", 1e6},
		{"B", 1e9},
	}
	for _, m := range multipliers {
		if strings.Contains(s, m.suffix) {
			n, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(s, m.suffix, "")), 64)
			if err != nil {
				return 0, false
			}
			return int64(n * m.factor), true
		}
	}

	n, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return int64(n), true
}
