package models

import (
	"time"
	"unicode/utf8"
)

// DateLayout is the canonical calendar key format.
const DateLayout = "2006-01-02"

// ValidDate reports whether s is a YYYY-MM-DD date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// FormatDate returns the canonical key for t.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Snippet returns at most n runes of s.
func Snippet(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
