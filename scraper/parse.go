package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FD.nl quotes numbers in Dutch notation: '.' for thousands, ',' for decimals,
// non-breaking spaces sprinkled in. Empty cells and "--" mean no value.

var (
	floatPattern = regexp.MustCompile(`-?\d+(\.\d+)?`)
	intPattern   = regexp.MustCompile(`-?\d+`)
)

func cleanNL(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ".", "")
	return s
}

// toFloatNL parses a Dutch-notation float. Returns 0 and false for empty or
// unparseable cells.
func toFloatNL(s string) (float64, bool) {
	if s == "" || s == "--" {
		return 0, false
	}
	s = strings.ReplaceAll(cleanNL(s), ",", ".")
	m := floatPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// toIntNL parses a Dutch-notation integer ('.' thousands separators).
func toIntNL(s string) (int, bool) {
	if s == "" || s == "--" {
		return 0, false
	}
	m := intPattern.FindString(cleanNL(s))
	if m == "" {
		return 0, false
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return v, true
}

// toDate parses DD-MM-YY or DD-MM-YYYY cells.
func toDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "--" {
		return time.Time{}, false
	}
	for _, layout := range []string{"02-01-06", "02-01-2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
