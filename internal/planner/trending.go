package planner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/postjournal/internal/apperr"
	"github.com/starford/postjournal/internal/models"
	"github.com/starford/postjournal/internal/prefs"
)

// Trending holds the latest research results. They live on the device, not
// in the store.
type Trending struct {
	env      Env
	gen      Generator
	profiles ProfileSource
	prefs    PrefsStore
	bank     *IdeaBank

	mu      sync.RWMutex
	results []models.Draft
	saved   models.SavedSet
	at      time.Time
}

func newTrending(env Env, gen Generator, profiles ProfileSource, ps PrefsStore, bank *IdeaBank) *Trending {
	t := &Trending{
		env:      env,
		gen:      gen,
		profiles: profiles,
		prefs:    ps,
		bank:     bank,
		saved:    models.SavedSet{},
	}
	if ps != nil {
		if last, ok := ps.Trending(); ok {
			t.results, t.at = last.Drafts, last.ResearchedAt
		}
	}
	return t
}

// Results returns the last results, which of them were saved, and when the
// research ran.
func (t *Trending) Results() ([]models.Draft, models.SavedSet, time.Time) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]models.Draft{}, t.results...), t.saved.Clone(), t.at
}

// Research asks for drafts on the profile's topics and replaces the results.
func (t *Trending) Research(ctx context.Context) ([]models.Draft, error) {
	if _, err := t.env.owner(); err != nil {
		return nil, err
	}
	profile := profileFor(t.profiles)
	drafts, err := t.gen.Trending(ctx, profile.APIKey, profile.ToneGuide, profile.Topics)
	if err != nil {
		return nil, err
	}

	now := t.env.Now().UTC()
	t.mu.Lock()
	t.results = append([]models.Draft(nil), drafts...)
	t.saved = models.SavedSet{}
	t.at = now
	t.mu.Unlock()

	if t.prefs != nil {
		if err := t.prefs.SetTrending(prefs.TrendingResults{Drafts: drafts, ResearchedAt: now}); err != nil {
			t.env.Logger.Warn("planner: store trending results failed", slog.String("error", err.Error()))
		}
	}
	return drafts, nil
}

// SaveDraft stores result i in the idea bank.
func (t *Trending) SaveDraft(ctx context.Context, i int) (*models.Idea, error) {
	owner, err := t.env.owner()
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	if i < 0 || i >= len(t.results) {
		t.mu.Unlock()
		return nil, fmt.Errorf("trending result %d: %w", i, apperr.ErrNotFound)
	}
	if t.saved[i] {
		t.mu.Unlock()
		return nil, fmt.Errorf("trending result %d already saved: %w", i, apperr.ErrConflict)
	}
	if t.saved == nil {
		t.saved = models.SavedSet{}
	}
	d, marks := t.results[i], t.saved
	marks[i] = true
	t.mu.Unlock()

	idea, err := t.bank.insert(ctx, owner, models.NewIdea(d, models.SourceTrending, "", t.env.Now()))
	if err != nil {
		t.mu.Lock()
		delete(marks, i)
		t.mu.Unlock()
		return nil, err
	}
	return idea, nil
}
