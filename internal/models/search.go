package models

import (
	"strings"
	"unicode/utf8"
)

// Search hit kinds.
const (
	HitJournal = "journal"
	HitIdea    = "idea"
)

// ExcerptWidth is the rune width of SearchHit.Snippet.
const ExcerptWidth = 120

// SearchHit is one journal entry or idea matching a text query. ID is the
// entry date for journal hits and the idea id otherwise.
type SearchHit struct {
	Kind    string `json:"kind"`
	ID      string `json:"id"`
	Snippet string `json:"snippet"`
}

// Excerpt returns about width runes of text around the first case-insensitive
// occurrence of query, whitespace collapsed. Cut ends are marked with "...".
func Excerpt(text, query string, width int) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) <= width {
		return flat
	}

	pos := 0
	if i := strings.Index(strings.ToLower(flat), strings.ToLower(query)); i >= 0 {
		pos = utf8.RuneCountInString(strings.ToLower(flat)[:i])
	}
	start := pos - width/3
	if start < 0 {
		start = 0
	}
	end := start + width
	if end > len(runes) {
		end = len(runes)
		start = end - width
	}

	out := string(runes[start:end])
	if start > 0 {
		out = "..." + out
	}
	if end < len(runes) {
		out += "..."
	}
	return out
}
