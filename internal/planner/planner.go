// Package planner holds the client-side state of the journal, idea bank,
// calendar and trending views.
//
// Every mutation is applied to the local mirror first and returns at once.
// Text edits reach the store after a quiet period; discrete actions are
// written immediately in the background. Nothing is rolled back when a write
// fails: background failures are logged, discrete ones also reach OnError.
package planner

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/starford/postjournal/internal/apperr"
	"github.com/starford/postjournal/internal/debounce"
	"github.com/starford/postjournal/internal/models"
	"github.com/starford/postjournal/internal/prefs"
	"github.com/starford/postjournal/internal/session"
	"github.com/starford/postjournal/internal/store"
)

// Default quiet periods.
const (
	DefaultJournalDelay = 800 * time.Millisecond
	DefaultIdeaDelay    = 500 * time.Millisecond
)

// Generator produces drafts. *generate.Client implements it.
type Generator interface {
	FromJournal(ctx context.Context, apiKey, tone, entry string) ([]models.Draft, error)
	Trending(ctx context.Context, apiKey, tone string, topics []string) ([]models.Draft, error)
}

// ProfileSource exposes the loaded profile. *session.Provider implements it.
type ProfileSource interface {
	Profile() session.ProfileState
}

// PrefsStore keeps the last trending results. *prefs.Store implements it.
type PrefsStore interface {
	Trending() (prefs.TrendingResults, bool)
	SetTrending(prefs.TrendingResults) error
}

// Env is what every container needs from its surroundings.
type Env struct {
	Store store.Store
	// Owner returns the current owner id or "" when signed out.
	Owner  func() string
	Logger *slog.Logger
	// OnError receives failures of discrete background writes.
	OnError func(key string, err error)
	Now     func() time.Time
}

func (e Env) withDefaults() Env {
	if e.Logger == nil {
		e.Logger = slog.Default()
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	if e.Owner == nil {
		e.Owner = func() string { return "" }
	}
	return e
}

func (e Env) owner() (string, error) {
	o := e.Owner()
	if o == "" {
		return "", apperr.ErrUnauthenticated
	}
	return o, nil
}

func (e Env) queue(delay time.Duration) *debounce.Queue {
	return debounce.New(delay,
		debounce.WithLogger(e.Logger),
		debounce.WithErrorHandler(func(key string, err error) {
			if e.OnError != nil {
				e.OnError(key, err)
			}
		}),
	)
}

// Delays overrides the default quiet periods. Zero fields keep the default.
type Delays struct {
	Journal time.Duration
	Ideas   time.Duration
}

// Planner wires the four containers together over one store.
type Planner struct {
	Journal  *Journal
	Ideas    *IdeaBank
	Calendar *Calendar
	Trending *Trending

	env    Env
	queues []*debounce.Queue
}

// New builds a Planner. prefs may be nil.
func New(env Env, gen Generator, profiles ProfileSource, ps PrefsStore, d Delays) *Planner {
	env = env.withDefaults()
	if d.Journal <= 0 {
		d.Journal = DefaultJournalDelay
	}
	if d.Ideas <= 0 {
		d.Ideas = DefaultIdeaDelay
	}

	b := newBoard(env, env.queue(d.Ideas))
	bank := &IdeaBank{env: env, board: b, patches: make(map[string]models.IdeaPatch)}
	journal := newJournal(env, env.queue(d.Journal), gen, profiles, bank)

	return &Planner{
		Journal:  journal,
		Ideas:    bank,
		Calendar: &Calendar{env: env, board: b},
		Trending: newTrending(env, gen, profiles, ps, bank),
		env:      env,
		queues:   []*debounce.Queue{journal.queue, b.queue},
	}
}

// Search asks the store for journal entries and ideas containing query.
// Unsent edits are not searched.
func (p *Planner) Search(ctx context.Context, query string, limit int) ([]models.SearchHit, error) {
	owner, err := p.env.owner()
	if err != nil {
		return nil, err
	}
	return p.env.Store.Search(ctx, owner, query, limit)
}

// Pending lists the keys with unsent or in-flight writes.
func (p *Planner) Pending() []string {
	var keys []string
	for _, q := range p.queues {
		keys = append(keys, q.Pending()...)
	}
	sort.Strings(keys)
	return keys
}

// Flush writes everything pending now.
func (p *Planner) Flush(ctx context.Context) error {
	var errs []error
	for _, q := range p.queues {
		errs = append(errs, q.Flush(ctx))
	}
	return errors.Join(errs...)
}

// Close flushes and stops accepting writes.
func (p *Planner) Close(ctx context.Context) error {
	var errs []error
	for _, q := range p.queues {
		errs = append(errs, q.Close(ctx))
	}
	return errors.Join(errs...)
}

func profileFor(ps ProfileSource) models.Profile {
	if ps == nil {
		return models.Profile{}
	}
	if p, ok := ps.Profile().Profile(); ok {
		return *p
	}
	return models.Profile{}
}
