package planner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/starford/postjournal/internal/debounce"
	"github.com/starford/postjournal/internal/models"
)

// board is the mirror shared by the idea bank and the calendar, so a schedule
// change is visible in both the moment it is made.
type board struct {
	env   Env
	queue *debounce.Queue

	mu     sync.RWMutex
	owner  string
	ideas  []models.Idea
	posts  []models.CalendarPost
	loaded bool
}

func newBoard(env Env, q *debounce.Queue) *board {
	return &board{env: env, queue: q}
}

func ideaEditKey(id string) string     { return "idea:" + id + ":fields" }
func scheduleKey(ideaID string) string { return "idea:" + ideaID + ":schedule" }
func postedKey(postID string) string   { return "post:" + postID + ":posted" }

// load fetches ideas and posts concurrently. On failure the mirror is left
// empty and the error returned.
func (b *board) load(ctx context.Context) error {
	owner, err := b.env.owner()
	if err != nil {
		return err
	}

	var (
		ideas []models.Idea
		posts []models.CalendarPost
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ideas, err = b.env.Store.ListIdeas(gctx, owner)
		return err
	})
	g.Go(func() error {
		var err error
		posts, err = b.env.Store.ListCalendarPosts(gctx, owner)
		return err
	})
	err = g.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.owner = owner
	b.loaded = true
	if err != nil {
		b.ideas, b.posts = nil, nil
		b.env.Logger.Error("planner: load board failed", slog.String("error", err.Error()))
		return fmt.Errorf("planner: load: %w", err)
	}
	b.ideas, b.posts = ideas, posts
	return nil
}

func (b *board) ideaIndex(id string) int {
	for i := range b.ideas {
		if b.ideas[i].ID == id {
			return i
		}
	}
	return -1
}

func (b *board) postIndex(id string) int {
	for i := range b.posts {
		if b.posts[i].ID == id {
			return i
		}
	}
	return -1
}

// dropPostsLocked removes every post linked to ideaID.
func (b *board) dropPostsLocked(ideaID string) {
	kept := b.posts[:0]
	for _, p := range b.posts {
		if p.IdeaID != ideaID {
			kept = append(kept, p)
		}
	}
	b.posts = kept
}

func (b *board) setScheduledLocked(ideaID string, date *string) {
	if i := b.ideaIndex(ideaID); i >= 0 {
		if date == nil {
			b.ideas[i].ScheduledDate = nil
		} else {
			d := *date
			b.ideas[i].ScheduledDate = &d
		}
	}
}

func (b *board) addIdea(idea models.Idea) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ideaIndex(idea.ID) >= 0 {
		return
	}
	b.ideas = append([]models.Idea{idea}, b.ideas...)
}

// countOn counts the posts on date, leaving out those skip matches.
func (b *board) countOn(date string, skip func(models.CalendarPost) bool) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, p := range b.posts {
		if p.Date == date && (skip == nil || !skip(p)) {
			n++
		}
	}
	return n
}
