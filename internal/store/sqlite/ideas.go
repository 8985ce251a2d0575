package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/starford/postjournal/internal/apperr"
	"github.com/starford/postjournal/internal/models"
	"github.com/starford/postjournal/internal/store"
)

const ideaColumns = `id, owner_id, title, body, image_idea, content_type, status, status_color,
	source, trend_source, from_date, scheduled_date, created_at`

// ListIdeas returns the owner's ideas newest first.
func (db *DB) ListIdeas(ctx context.Context, owner string) ([]models.Idea, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+ideaColumns+` FROM ideas WHERE owner_id = ? ORDER BY created_at DESC, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list ideas: %w", err)
	}
	defer rows.Close()

	out := []models.Idea{}
	for rows.Next() {
		idea, err := scanIdea(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *idea)
	}
	return out, rows.Err()
}

// InsertIdea stores a new, unscheduled idea. Missing defaults are filled in.
func (db *DB) InsertIdea(ctx context.Context, owner string, idea models.Idea) (*models.Idea, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}
	idea = store.PrepareIdea(owner, idea, db.stamp())

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO ideas (id, owner_id, title, body, image_idea, content_type, status, status_color,
			source, trend_source, from_date, scheduled_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)
	`, idea.ID, owner, idea.Title, idea.Body, idea.ImageIdea, string(idea.ContentType), idea.Status,
		idea.StatusColor, string(idea.Source), idea.TrendSource, idea.FromDate, formatTime(idea.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("idea %s: %w", idea.ID, apperr.ErrConflict)
		}
		return nil, fmt.Errorf("sqlite: insert idea: %w", err)
	}
	return &idea, nil
}

// UpdateIdea applies inline edits to one idea.
func (db *DB) UpdateIdea(ctx context.Context, owner, id string, patch models.IdeaPatch) (*models.Idea, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	idea, err := getIdea(ctx, tx, owner, id)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return idea, nil
	}
	patch.Apply(idea)

	_, err = tx.ExecContext(ctx, `
		UPDATE ideas SET title = ?, body = ?, image_idea = ?, content_type = ?, status = ?, status_color = ?
		WHERE owner_id = ? AND id = ?
	`, idea.Title, idea.Body, idea.ImageIdea, string(idea.ContentType), idea.Status, idea.StatusColor, owner, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: update idea: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: commit: %w", err)
	}
	return idea, nil
}

// DeleteIdea removes the idea and its calendar posts in one transaction.
func (db *DB) DeleteIdea(ctx context.Context, owner, id string) error {
	if err := store.RequireOwner(owner); err != nil {
		return err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM calendar_posts WHERE owner_id = ? AND idea_id = ?`, owner, id); err != nil {
		return fmt.Errorf("sqlite: delete idea posts: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM ideas WHERE owner_id = ? AND id = ?`, owner, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete idea: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("idea %s: %w", id, apperr.ErrNotFound)
	}
	return tx.Commit()
}

func getIdea(ctx context.Context, q querier, owner, id string) (*models.Idea, error) {
	row := q.QueryRowContext(ctx, `SELECT `+ideaColumns+` FROM ideas WHERE owner_id = ? AND id = ?`, owner, id)
	idea, err := scanIdea(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("idea %s: %w", id, apperr.ErrNotFound)
	}
	return idea, err
}

func scanIdea(s scanner) (*models.Idea, error) {
	var (
		idea                models.Idea
		contentType, source string
		scheduled           sql.NullString
		createdAt           string
	)
	err := s.Scan(&idea.ID, &idea.OwnerID, &idea.Title, &idea.Body, &idea.ImageIdea, &contentType,
		&idea.Status, &idea.StatusColor, &source, &idea.TrendSource, &idea.FromDate, &scheduled, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("sqlite: scan idea: %w", err)
	}
	idea.ContentType = models.ParseCategory(contentType)
	idea.Source = models.Source(source)
	if scheduled.Valid {
		d := scheduled.String
		idea.ScheduledDate = &d
	}
	idea.CreatedAt = parseTime(createdAt)
	return &idea, nil
}
