package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/postjournal/internal/apperr"
	"github.com/starford/postjournal/internal/debounce"
	"github.com/starford/postjournal/internal/models"
)

// Journal holds journal entries by date.
type Journal struct {
	env      Env
	queue    *debounce.Queue
	gen      Generator
	profiles ProfileSource
	bank     *IdeaBank

	mu      sync.RWMutex
	entries map[string]*models.JournalEntry
}

func newJournal(env Env, q *debounce.Queue, gen Generator, profiles ProfileSource, bank *IdeaBank) *Journal {
	return &Journal{
		env:      env,
		queue:    q,
		gen:      gen,
		profiles: profiles,
		bank:     bank,
		entries:  make(map[string]*models.JournalEntry),
	}
}

func journalTextKey(date string) string   { return "journal:" + date + ":text" }
func journalDraftsKey(date string) string { return "journal:" + date + ":drafts" }

// Today returns today's date key.
func (j *Journal) Today() string {
	return models.FormatDate(j.env.Now())
}

// Load fetches the entry for date into the mirror. A missing entry loads as
// an empty one; a failed read also leaves an empty entry and is returned.
func (j *Journal) Load(ctx context.Context, date string) (models.JournalEntry, error) {
	owner, err := j.env.owner()
	if err != nil {
		return models.JournalEntry{}, err
	}
	if !models.ValidDate(date) {
		return models.JournalEntry{}, fmt.Errorf("date %q: %w", date, apperr.ErrInvalid)
	}

	e, err := j.env.Store.GetJournalEntry(ctx, owner, date)
	var loadErr error
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		e = &models.JournalEntry{Date: date, OwnerID: owner}
	case err != nil:
		j.env.Logger.Error("planner: load journal entry failed",
			slog.String("date", date), slog.String("error", err.Error()))
		e = &models.JournalEntry{Date: date, OwnerID: owner}
		loadErr = fmt.Errorf("planner: load journal %s: %w", date, err)
	}
	e.Normalize()

	j.mu.Lock()
	j.entries[date] = e
	out := copyEntry(e)
	j.mu.Unlock()
	return out, loadErr
}

// Entry returns the mirrored entry for date.
func (j *Journal) Entry(date string) models.JournalEntry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if e, ok := j.entries[date]; ok {
		return copyEntry(e)
	}
	e := models.JournalEntry{Date: date}
	e.Normalize()
	return e
}

// History returns every stored entry, newest first.
func (j *Journal) History(ctx context.Context) ([]models.JournalEntry, error) {
	owner, err := j.env.owner()
	if err != nil {
		return nil, err
	}
	list, err := j.env.Store.ListJournalEntries(ctx, owner)
	if err != nil {
		j.env.Logger.Error("planner: list journal failed", slog.String("error", err.Error()))
		return []models.JournalEntry{}, fmt.Errorf("planner: journal history: %w", err)
	}
	return list, nil
}

func (j *Journal) entryLocked(owner, date string) *models.JournalEntry {
	e, ok := j.entries[date]
	if !ok {
		e = &models.JournalEntry{Date: date, OwnerID: owner}
		e.Normalize()
		j.entries[date] = e
	}
	return e
}

// SetText updates the entry text locally and writes it after the quiet period.
func (j *Journal) SetText(date, text string) error {
	owner, err := j.env.owner()
	if err != nil {
		return err
	}
	if !models.ValidDate(date) {
		return fmt.Errorf("date %q: %w", date, apperr.ErrInvalid)
	}

	j.mu.Lock()
	j.entryLocked(owner, date).EntryText = text
	j.mu.Unlock()

	j.queue.Schedule(journalTextKey(date), func(ctx context.Context) error {
		_, err := j.env.Store.UpsertJournalEntry(ctx, owner, date, models.JournalPatch{EntryText: &text})
		return err
	})
	return nil
}

// Generate asks for drafts based on the entry text, replaces the entry's
// drafts, clears its saved markers and persists both right away.
func (j *Journal) Generate(ctx context.Context, date string) ([]models.Draft, error) {
	owner, err := j.env.owner()
	if err != nil {
		return nil, err
	}
	profile := profileFor(j.profiles)
	text := j.Entry(date).EntryText

	drafts, err := j.gen.FromJournal(ctx, profile.APIKey, profile.ToneGuide, text)
	if err != nil {
		return nil, err
	}

	j.mu.Lock()
	e := j.entryLocked(owner, date)
	e.GeneratedIdeas = append([]models.Draft(nil), drafts...)
	e.SavedIndices = models.SavedSet{}
	j.mu.Unlock()

	j.persistDrafts(owner, date)
	return drafts, nil
}

// persistDrafts writes the mirrored drafts and markers of date. The values are
// read when the write runs, so a later call never loses an earlier change.
func (j *Journal) persistDrafts(owner, date string) {
	j.queue.Do(journalDraftsKey(date), func(ctx context.Context) error {
		j.mu.Lock()
		e := copyEntry(j.entryLocked(owner, date))
		j.mu.Unlock()
		_, err := j.env.Store.UpsertJournalEntry(ctx, owner, date, models.JournalPatch{
			GeneratedIdeas: &e.GeneratedIdeas,
			SavedIndices:   &e.SavedIndices,
		})
		return err
	})
}

// SaveDraft stores draft i of date in the idea bank and marks it saved.
func (j *Journal) SaveDraft(ctx context.Context, date string, i int) (*models.Idea, error) {
	owner, err := j.env.owner()
	if err != nil {
		return nil, err
	}

	// The marker is set before the insert so a concurrent save of the same
	// draft sees it. Generate swaps in a new set, leaving this one orphaned.
	j.mu.Lock()
	e, ok := j.entries[date]
	if !ok || i < 0 || i >= len(e.GeneratedIdeas) {
		j.mu.Unlock()
		return nil, fmt.Errorf("draft %d on %s: %w", i, date, apperr.ErrNotFound)
	}
	if e.SavedIndices[i] {
		j.mu.Unlock()
		return nil, fmt.Errorf("draft %d on %s already saved: %w", i, date, apperr.ErrConflict)
	}
	if e.SavedIndices == nil {
		e.SavedIndices = models.SavedSet{}
	}
	d, marks := e.GeneratedIdeas[i], e.SavedIndices
	marks[i] = true
	j.mu.Unlock()

	idea, err := j.bank.insert(ctx, owner, models.NewIdea(d, models.SourceJournal, date, j.env.Now()))
	if err != nil {
		j.mu.Lock()
		delete(marks, i)
		j.mu.Unlock()
		return nil, err
	}
	j.persistDrafts(owner, date)
	return idea, nil
}

func copyEntry(e *models.JournalEntry) models.JournalEntry {
	out := *e
	out.GeneratedIdeas = append([]models.Draft{}, e.GeneratedIdeas...)
	out.SavedIndices = e.SavedIndices.Clone()
	return out
}
