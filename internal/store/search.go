package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/postjournal/internal/apperr"
	"github.com/starford/postjournal/internal/models"
)

// Search result limits.
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

// Searcher finds journal entries and ideas containing a text.
type Searcher interface {
	// Search matches query case-insensitively against journal text and idea
	// bodies. Journal hits come first, newest first, then ideas newest first;
	// at most limit hits are returned.
	Search(ctx context.Context, owner, query string, limit int) ([]models.SearchHit, error)
}

// PrepareSearch trims query and clamps limit. An empty query is invalid.
func PrepareSearch(query string, limit int) (string, int, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", 0, fmt.Errorf("search: empty query: %w", apperr.ErrInvalid)
	}
	switch {
	case limit <= 0:
		limit = DefaultSearchLimit
	case limit > MaxSearchLimit:
		limit = MaxSearchLimit
	}
	return q, limit, nil
}

// LikePattern returns a LIKE pattern matching q anywhere, with \ as the
// escape character.
func LikePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}

// JournalHit builds the hit for a matching journal entry.
func JournalHit(date, text, query string) models.SearchHit {
	return models.SearchHit{Kind: models.HitJournal, ID: date, Snippet: models.Excerpt(text, query, models.ExcerptWidth)}
}

// IdeaHit builds the hit for a matching idea.
func IdeaHit(id, body, query string) models.SearchHit {
	return models.SearchHit{Kind: models.HitIdea, ID: id, Snippet: models.Excerpt(body, query, models.ExcerptWidth)}
}

// MergeHits concatenates journal and idea hits up to limit.
func MergeHits(journal, ideas []models.SearchHit, limit int) []models.SearchHit {
	out := make([]models.SearchHit, 0, limit)
	out = append(out, journal...)
	out = append(out, ideas...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
