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

const postColumns = `id, owner_id, idea_id, date, label, type, posted`

// ListCalendarPosts returns the owner's posts ordered by date.
func (db *DB) ListCalendarPosts(ctx context.Context, owner string) ([]models.CalendarPost, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+postColumns+` FROM calendar_posts WHERE owner_id = ? ORDER BY date, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list calendar posts: %w", err)
	}
	defer rows.Close()

	out := []models.CalendarPost{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdateCalendarPost toggles the posted flag.
func (db *DB) UpdateCalendarPost(ctx context.Context, owner, id string, patch models.CalendarPatch) (*models.CalendarPost, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	p, err := getPost(ctx, tx, owner, id)
	if err != nil {
		return nil, err
	}
	if patch.Posted != nil {
		p.Posted = *patch.Posted
		if _, err := tx.ExecContext(ctx, `UPDATE calendar_posts SET posted = ? WHERE owner_id = ? AND id = ?`,
			p.Posted, owner, id); err != nil {
			return nil, fmt.Errorf("sqlite: update calendar post: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: commit: %w", err)
	}
	return p, nil
}

// ScheduleIdea replaces the idea's calendar post and scheduled date atomically.
func (db *DB) ScheduleIdea(ctx context.Context, owner, ideaID string, date *string) (*models.CalendarPost, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}
	if date != nil {
		if err := store.RequireDate(*date); err != nil {
			return nil, err
		}
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	idea, err := getIdea(ctx, tx, owner, ideaID)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM calendar_posts WHERE owner_id = ? AND idea_id = ?`, owner, ideaID); err != nil {
		return nil, fmt.Errorf("sqlite: clear idea posts: %w", err)
	}
	if err := setScheduled(ctx, tx, owner, ideaID, date); err != nil {
		return nil, err
	}

	var post *models.CalendarPost
	if date != nil {
		p := models.NewCalendarPost(*idea, *date)
		p.OwnerID = owner
		_, err := tx.ExecContext(ctx, `
			INSERT INTO calendar_posts (id, owner_id, idea_id, date, label, type, posted)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, p.ID, owner, p.IdeaID, p.Date, p.Label, string(p.Type), p.Posted)
		if err != nil {
			return nil, fmt.Errorf("sqlite: insert calendar post: %w", err)
		}
		post = &p
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: commit: %w", err)
	}
	return post, nil
}

// MovePost changes a post's date and its idea's scheduled date atomically.
func (db *DB) MovePost(ctx context.Context, owner, postID, date string) (*models.CalendarPost, error) {
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

	p, err := getPost(ctx, tx, owner, postID)
	if err != nil {
		return nil, err
	}
	p.Date = date
	if _, err := tx.ExecContext(ctx, `UPDATE calendar_posts SET date = ? WHERE owner_id = ? AND id = ?`,
		date, owner, postID); err != nil {
		return nil, fmt.Errorf("sqlite: move calendar post: %w", err)
	}
	if err := setScheduled(ctx, tx, owner, p.IdeaID, &date); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: commit: %w", err)
	}
	return p, nil
}

// RemovePost deletes the post and clears its idea's scheduled date atomically.
func (db *DB) RemovePost(ctx context.Context, owner, postID string) error {
	if err := store.RequireOwner(owner); err != nil {
		return err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	p, err := getPost(ctx, tx, owner, postID)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM calendar_posts WHERE owner_id = ? AND id = ?`, owner, postID); err != nil {
		return fmt.Errorf("sqlite: delete calendar post: %w", err)
	}
	if err := setScheduled(ctx, tx, owner, p.IdeaID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// setScheduled tolerates a missing idea: the post may outlive it.
func setScheduled(ctx context.Context, q querier, owner, ideaID string, date *string) error {
	var v any
	if date != nil {
		v = *date
	}
	if _, err := q.ExecContext(ctx, `UPDATE ideas SET scheduled_date = ? WHERE owner_id = ? AND id = ?`,
		v, owner, ideaID); err != nil {
		return fmt.Errorf("sqlite: set scheduled date: %w", err)
	}
	return nil
}

func getPost(ctx context.Context, q querier, owner, id string) (*models.CalendarPost, error) {
	row := q.QueryRowContext(ctx, `SELECT `+postColumns+` FROM calendar_posts WHERE owner_id = ? AND id = ?`, owner, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("calendar post %s: %w", id, apperr.ErrNotFound)
	}
	return p, err
}

func scanPost(s scanner) (*models.CalendarPost, error) {
	var (
		p   models.CalendarPost
		typ string
	)
	if err := s.Scan(&p.ID, &p.OwnerID, &p.IdeaID, &p.Date, &p.Label, &typ, &p.Posted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("sqlite: scan calendar post: %w", err)
	}
	p.Type = models.ParseCategory(typ)
	return &p, nil
}
