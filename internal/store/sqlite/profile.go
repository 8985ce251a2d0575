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

// GetProfile returns the owner's profile.
func (db *DB) GetProfile(ctx context.Context, owner string) (*models.Profile, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}
	return getProfile(ctx, db.conn, owner)
}

// UpsertProfile writes the set fields of patch, creating the profile if needed.
func (db *DB) UpsertProfile(ctx context.Context, owner string, patch models.ProfilePatch) (*models.Profile, error) {
	if err := store.RequireOwner(owner); err != nil {
		return nil, err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	p, err := getProfile(ctx, tx, owner)
	if errors.Is(err, apperr.ErrNotFound) {
		p = &models.Profile{OwnerID: owner, Topics: []string{}}
	} else if err != nil {
		return nil, err
	}
	patch.Apply(p)
	p.UpdatedAt = db.stamp()

	topics, _ := json.Marshal(p.Topics)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO profiles (id, tone_guide, topics, api_key, onboarding_complete, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tone_guide          = excluded.tone_guide,
			topics              = excluded.topics,
			api_key             = excluded.api_key,
			onboarding_complete = excluded.onboarding_complete,
			updated_at          = excluded.updated_at
	`, owner, p.ToneGuide, string(topics), p.APIKey, p.OnboardingComplete, formatTime(p.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("sqlite: upsert profile: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: commit: %w", err)
	}
	return p, nil
}

func getProfile(ctx context.Context, q querier, owner string) (*models.Profile, error) {
	var (
		p         models.Profile
		topics    string
		updatedAt string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, tone_guide, topics, api_key, onboarding_complete, updated_at
		FROM profiles WHERE id = ?
	`, owner).Scan(&p.OwnerID, &p.ToneGuide, &topics, &p.APIKey, &p.OnboardingComplete, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: %w", owner, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get profile: %w", err)
	}
	if err := json.Unmarshal([]byte(topics), &p.Topics); err != nil {
		return nil, fmt.Errorf("sqlite: profile %s: decode topics: %w", owner, err)
	}
	if p.Topics == nil {
		p.Topics = []string{}
	}
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}
