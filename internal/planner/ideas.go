package planner

import (
	"context"
	"fmt"
	"sync"

	"github.com/starford/postjournal/internal/apperr"
	"github.com/starford/postjournal/internal/calendar"
	"github.com/starford/postjournal/internal/models"
)

// CountAll is the Counts key for the unfiltered total.
const CountAll = "all"

// IdeaBank holds the saved ideas.
type IdeaBank struct {
	env   Env
	board *board

	mu      sync.Mutex
	patches map[string]models.IdeaPatch
}

// Load fetches ideas and calendar posts.
func (b *IdeaBank) Load(ctx context.Context) error {
	return b.board.load(ctx)
}

// Ideas returns the mirrored ideas, newest first. A valid category filters.
func (b *IdeaBank) Ideas(filter models.Category) []models.Idea {
	b.board.mu.RLock()
	defer b.board.mu.RUnlock()
	out := make([]models.Idea, 0, len(b.board.ideas))
	for _, i := range b.board.ideas {
		if filter != "" && i.ContentType != filter {
			continue
		}
		out = append(out, i)
	}
	return out
}

// Get returns one mirrored idea.
func (b *IdeaBank) Get(id string) (models.Idea, bool) {
	b.board.mu.RLock()
	defer b.board.mu.RUnlock()
	if i := b.board.ideaIndex(id); i >= 0 {
		return b.board.ideas[i], true
	}
	return models.Idea{}, false
}

// Counts returns the number of ideas per category plus CountAll.
func (b *IdeaBank) Counts() map[string]int {
	b.board.mu.RLock()
	defer b.board.mu.RUnlock()
	counts := map[string]int{CountAll: len(b.board.ideas)}
	for _, i := range b.board.ideas {
		counts[string(models.ParseCategory(string(i.ContentType)))]++
	}
	return counts
}

// Create stores a manually written idea.
func (b *IdeaBank) Create(ctx context.Context, d models.Draft) (*models.Idea, error) {
	owner, err := b.env.owner()
	if err != nil {
		return nil, err
	}
	if d.PostCopy == "" {
		return nil, fmt.Errorf("idea body is empty: %w", apperr.ErrInvalid)
	}
	return b.insert(ctx, owner, models.NewIdea(d, models.SourceManual, "", b.env.Now()))
}

// insert writes idea synchronously and adds the stored row to the mirror.
func (b *IdeaBank) insert(ctx context.Context, owner string, idea models.Idea) (*models.Idea, error) {
	stored, err := b.env.Store.InsertIdea(ctx, owner, idea)
	if err != nil {
		return nil, fmt.Errorf("planner: save idea: %w", err)
	}
	b.board.addIdea(*stored)
	return stored, nil
}

// Update applies an inline edit locally and writes it after the quiet period.
// Edits to different fields within one period are merged into one write.
func (b *IdeaBank) Update(id string, patch models.IdeaPatch) error {
	owner, err := b.env.owner()
	if err != nil {
		return err
	}
	if patch.Empty() {
		return nil
	}

	b.board.mu.Lock()
	i := b.board.ideaIndex(id)
	if i < 0 {
		b.board.mu.Unlock()
		return fmt.Errorf("idea %s: %w", id, apperr.ErrNotFound)
	}
	patch.Apply(&b.board.ideas[i])
	b.board.mu.Unlock()

	b.mu.Lock()
	b.patches[id] = b.patches[id].Merge(patch)
	b.mu.Unlock()

	b.board.queue.Schedule(ideaEditKey(id), func(ctx context.Context) error {
		b.mu.Lock()
		next := b.patches[id]
		delete(b.patches, id)
		b.mu.Unlock()
		if next.Empty() {
			return nil
		}
		_, err := b.env.Store.UpdateIdea(ctx, owner, id, next)
		return err
	})
	return nil
}

// Delete removes the idea and its calendar posts locally and remotely.
func (b *IdeaBank) Delete(id string) error {
	owner, err := b.env.owner()
	if err != nil {
		return err
	}

	b.board.mu.Lock()
	i := b.board.ideaIndex(id)
	if i < 0 {
		b.board.mu.Unlock()
		return fmt.Errorf("idea %s: %w", id, apperr.ErrNotFound)
	}
	b.board.ideas = append(b.board.ideas[:i], b.board.ideas[i+1:]...)
	b.board.dropPostsLocked(id)
	b.board.mu.Unlock()

	b.mu.Lock()
	delete(b.patches, id)
	b.mu.Unlock()
	b.board.queue.Cancel(ideaEditKey(id))

	b.board.queue.Do(scheduleKey(id), func(ctx context.Context) error {
		return b.env.Store.DeleteIdea(ctx, owner, id)
	})
	return nil
}

// Schedule puts the idea on date, replacing any post it already has. A nil
// date unschedules it. Both mirrors change before Schedule returns; the store
// receives one ScheduleIdea call.
func (b *IdeaBank) Schedule(id string, date *string) error {
	owner, err := b.env.owner()
	if err != nil {
		return err
	}
	if date != nil && !models.ValidDate(*date) {
		return fmt.Errorf("date %q: %w", *date, apperr.ErrInvalid)
	}

	b.board.mu.Lock()
	i := b.board.ideaIndex(id)
	if i < 0 {
		b.board.mu.Unlock()
		return fmt.Errorf("idea %s: %w", id, apperr.ErrNotFound)
	}
	b.board.setScheduledLocked(id, date)
	b.board.dropPostsLocked(id)
	if date != nil {
		post := models.NewCalendarPost(b.board.ideas[i], *date)
		post.OwnerID = owner
		b.board.posts = append([]models.CalendarPost{post}, b.board.posts...)
	}
	b.board.mu.Unlock()

	var target *string
	if date != nil {
		d := *date
		target = &d
	}
	b.board.queue.Do(scheduleKey(id), func(ctx context.Context) error {
		_, err := b.env.Store.ScheduleIdea(ctx, owner, id, target)
		return err
	})
	return nil
}

// DayIsFull reports whether scheduling ideaID on date lands on a full day.
// The idea's own post does not count.
func (b *IdeaBank) DayIsFull(ideaID, date string) bool {
	return calendar.IsFull(b.board.countOn(date, func(p models.CalendarPost) bool {
		return p.IdeaID == ideaID
	}))
}
