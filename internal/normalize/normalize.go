// Package normalize prepares extracted document fields for comparison.
package normalize

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Date layouts used by the documents and forms.
var (
	// PassportDateLayouts covers YYYY/MM/DD and YYYYMMDD as produced by passport OCR
	PassportDateLayouts = []string{"2006/01/02", "20060102", "2006-01-02"}

	// DeclaredDateLayouts covers dates typed into the claim form
	DeclaredDateLayouts = []string{"2006-01-02"}

	// TicketDateLayouts covers the date styles printed on supported airline tickets
	TicketDateLayouts = []string{"02Jan2006", "Monday 02 January 2006", "02 Jan 06", TicketDateOutput}
)

// TicketDateOutput is the canonical ticket date format (DD-MM-YYYY)
const TicketDateOutput = "02-01-2006"

// Text lower-cases and trims a field value. Unicode is NFKC-normalized,
// control characters are dropped and internal whitespace is collapsed.
func Text(s string) string {
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	// cases.Caser is stateful, so one is created per call
	return cases.Lower(language.Und).String(strings.Join(fields, " "))
}

// Field normalizes an optional field. ok is false when the field is absent
// or empty after normalization.
func Field(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	v := Text(*p)
	if v == "" {
		return "", false
	}
	return v, true
}

// Date parses s with the first layout that matches and returns the calendar
// date in UTC. ok is false when s is empty or matches no layout.
func Date(s string, layouts []string) (time.Time, bool) {
	s = strings.TrimSpace(norm.NFKC.String(s))
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// DateField parses an optional field as a date
func DateField(p *string, layouts []string) (time.Time, bool) {
	if p == nil {
		return time.Time{}, false
	}
	return Date(*p, layouts)
}

// Day truncates t to its calendar date in t's location, returned as UTC midnight
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
