package report

import (
	"strings"
	"time"
	"unicode/utf8"
)

// LastMonth returns the last day of the month preceding now.
func LastMonth(now time.Time) time.Time {
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 0, -1)
}

// monthWindow returns the [from, to) bounds of the calendar month containing d.
func monthWindow(d time.Time) (from, to time.Time) {
	from = time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

// asciiReplace replaces every non-ASCII rune of s with '?'.
func asciiReplace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= utf8.RuneSelf || r == utf8.RuneError {
			b.WriteByte('?')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
