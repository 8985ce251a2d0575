package sqlite

import (
	"context"
	"fmt"

	"github.com/starford/postjournal/internal/models"
	"github.com/starford/postjournal/internal/store"
)

// Search scans journal text and idea bodies with LIKE. SQLite's LIKE folds
// ASCII case only.
func (db *DB) Search(ctx context.Context, owner, query string, limit int) ([]models.SearchHit, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}
	q, limit, err := store.PrepareSearch(query, limit)
	if err != nil {
		return nil, err
	}
	like := store.LikePattern(q)

	journal, err := db.searchRows(ctx, q, store.JournalHit, `
		SELECT date, entry_text
		FROM journal_entries
		WHERE owner_id = ? AND entry_text LIKE ? ESCAPE '\'
		ORDER BY date DESC
		LIMIT ?
	`, owner, like, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search journal: %w", err)
	}

	ideas, err := db.searchRows(ctx, q, store.IdeaHit, `
		SELECT id, body
		FROM ideas
		WHERE owner_id = ? AND body LIKE ? ESCAPE '\'
		ORDER BY created_at DESC, id
		LIMIT ?
	`, owner, like, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search ideas: %w", err)
	}

	return store.MergeHits(journal, ideas, limit), nil
}

func (db *DB) searchRows(ctx context.Context, q string, hit func(id, text, query string) models.SearchHit,
	stmt string, args ...any) ([]models.SearchHit, error) {
	rows, err := db.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SearchHit
	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			return nil, err
		}
		out = append(out, hit(id, text, q))
	}
	return out, rows.Err()
}
