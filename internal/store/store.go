// Package store defines the owner-scoped data-access interfaces used by both the
// API server and the client core. Every call takes the owner id explicitly.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/postjournal/internal/apperr"
	"github.com/starford/postjournal/internal/models"
)

// JournalRepo persists journal entries keyed by (date, owner).
type JournalRepo interface {
	// GetJournalEntry returns apperr.ErrNotFound when no entry exists for the date.
	GetJournalEntry(ctx context.Context, owner, date string) (*models.JournalEntry, error)
	// UpsertJournalEntry creates the entry on first write and applies patch.
	UpsertJournalEntry(ctx context.Context, owner, date string, patch models.JournalPatch) (*models.JournalEntry, error)
	// ListJournalEntries returns entries newest first.
	ListJournalEntries(ctx context.Context, owner string) ([]models.JournalEntry, error)
}

// IdeaRepo persists the idea bank.
type IdeaRepo interface {
	ListIdeas(ctx context.Context, owner string) ([]models.Idea, error)
	InsertIdea(ctx context.Context, owner string, idea models.Idea) (*models.Idea, error)
	UpdateIdea(ctx context.Context, owner, id string, patch models.IdeaPatch) (*models.Idea, error)
	// DeleteIdea removes the idea and any calendar post linked to it.
	DeleteIdea(ctx context.Context, owner, id string) error
}

// CalendarRepo persists calendar posts.
type CalendarRepo interface {
	ListCalendarPosts(ctx context.Context, owner string) ([]models.CalendarPost, error)
	UpdateCalendarPost(ctx context.Context, owner, id string, patch models.CalendarPatch) (*models.CalendarPost, error)
}

// Scheduler keeps CalendarPost.date and Idea.scheduled_date in agreement.
// Each method is one atomic operation on the server side.
type Scheduler interface {
	// ScheduleIdea moves the idea to date, replacing any existing post for it.
	// A nil date unschedules and returns a nil post.
	ScheduleIdea(ctx context.Context, owner, ideaID string, date *string) (*models.CalendarPost, error)
	// MovePost changes the date of an existing post and its idea.
	MovePost(ctx context.Context, owner, postID, date string) (*models.CalendarPost, error)
	// RemovePost deletes the post and clears its idea's scheduled date.
	RemovePost(ctx context.Context, owner, postID string) error
}

// ProfileRepo persists one profile per owner.
type ProfileRepo interface {
	// GetProfile returns apperr.ErrNotFound when the owner has no profile yet.
	GetProfile(ctx context.Context, owner string) (*models.Profile, error)
	UpsertProfile(ctx context.Context, owner string, patch models.ProfilePatch) (*models.Profile, error)
}

// Store is the single data-access abstraction over every collection.
type Store interface {
	JournalRepo
	IdeaRepo
	CalendarRepo
	Scheduler
	ProfileRepo
	Searcher
	Close() error
}

// RequireOwner rejects calls that carry no owner id.
func RequireOwner(owner string) error {
	if owner == "" {
		return apperr.ErrUnauthenticated
	}
	return nil
}

// RequireDate rejects dates that are not YYYY-MM-DD.
func RequireDate(date string) error {
	if !models.ValidDate(date) {
		return fmt.Errorf("date %q: %w", date, apperr.ErrInvalid)
	}
	return nil
}

// PrepareIdea applies the defaults every backend fills in on insert. Inserted
// ideas are never scheduled; scheduling goes through Scheduler.
func PrepareIdea(owner string, idea models.Idea, now time.Time) models.Idea {
	if idea.ID == "" {
		idea.ID = uuid.NewString()
	}
	idea.OwnerID = owner
	idea.ContentType = models.ParseCategory(string(idea.ContentType))
	idea.Title = models.Snippet(idea.Body, models.TitleLength)
	idea.ScheduledDate = nil
	if idea.Status == "" {
		idea.Status = models.StatusDraft
		idea.StatusColor = models.StatusDraftColor
	}
	if idea.CreatedAt.IsZero() {
		idea.CreatedAt = now.UTC()
	}
	return idea
}
