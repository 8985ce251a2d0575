package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/postjournal/internal/apperr"
	"github.com/starford/postjournal/internal/models"
	"github.com/starford/postjournal/internal/store"
)

const journalColumns = `owner_id, date, entry_text, generated_ideas, saved_indices, updated_at`

// GetJournalEntry returns the entry for (owner, date).
func (db *DB) GetJournalEntry(ctx context.Context, owner, date string) (*models.JournalEntry, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}
	return getJournal(ctx, db.conn, owner, date)
}

// UpsertJournalEntry creates the entry on first write and applies patch in one transaction.
func (db *DB) UpsertJournalEntry(ctx context.Context, owner, date string, patch models.JournalPatch) (*models.JournalEntry, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}
	if err := store.RequireDate(date); err != nil {
		return nil, err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	e, err := getJournal(ctx, tx, owner, date)
	if errors.Is(err, apperr.ErrNotFound) {
		e = &models.JournalEntry{Date: date, OwnerID: owner}
	} else if err != nil {
		return nil, err
	}

	patch.Apply(e)
	e.Normalize()
	e.UpdatedAt = db.stamp()

	drafts, _ := json.Marshal(e.GeneratedIdeas)
	saved, _ := json.Marshal(e.SavedIndices)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO journal_entries (owner_id, date, entry_text, generated_ideas, saved_indices, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, date) DO UPDATE SET
			entry_text      = excluded.entry_text,
			generated_ideas = excluded.generated_ideas,
			saved_indices   = excluded.saved_indices,
			updated_at      = excluded.updated_at
	`, owner, date, e.EntryText, string(drafts), string(saved), formatTime(e.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("sqlite: upsert journal entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: commit: %w", err)
	}
	return e, nil
}

// ListJournalEntries returns the owner's entries newest first.
func (db *DB) ListJournalEntries(ctx context.Context, owner string) ([]models.JournalEntry, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+journalColumns+` FROM journal_entries WHERE owner_id = ? ORDER BY date DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list journal entries: %w", err)
	}
	defer rows.Close()

	out := []models.JournalEntry{}
	for rows.Next() {
		e, err := scanJournal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func getJournal(ctx context.Context, q querier, owner, date string) (*models.JournalEntry, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+journalColumns+` FROM journal_entries WHERE owner_id = ? AND date = ?`, owner, date)
	e, err := scanJournal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journal entry %s: %w", date, apperr.ErrNotFound)
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJournal(s scanner) (*models.JournalEntry, error) {
	var (
		e             models.JournalEntry
		drafts, saved string
		updatedAt     string
	)
	if err := s.Scan(&e.OwnerID, &e.Date, &e.EntryText, &drafts, &saved, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("sqlite: scan journal entry: %w", err)
	}
	if err := json.Unmarshal([]byte(drafts), &e.GeneratedIdeas); err != nil {
		return nil, fmt.Errorf("sqlite: journal entry %s: decode generated_ideas: %w", e.Date, err)
	}
	if err := json.Unmarshal([]byte(saved), &e.SavedIndices); err != nil {
		return nil, fmt.Errorf("sqlite: journal entry %s: decode saved_indices: %w", e.Date, err)
	}
	e.UpdatedAt = parseTime(updatedAt)
	e.Normalize()
	return &e, nil
}
