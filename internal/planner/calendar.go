package planner

import (
	"context"
	"fmt"

	"github.com/starford/postjournal/internal/apperr"
	"github.com/starford/postjournal/internal/calendar"
	"github.com/starford/postjournal/internal/models"
)

// Calendar is the scheduling view over the same mirror as the idea bank.
type Calendar struct {
	env   Env
	board *board
}

// DayEntry is a calendar post joined with its idea. When the idea is not in
// the mirror the post's own label stands in and Missing is set.
type DayEntry struct {
	Post        models.CalendarPost `json:"post"`
	Body        string              `json:"body"`
	ImageIdea   string              `json:"image_idea"`
	ContentType models.Category     `json:"content_type"`
	Missing     bool                `json:"missing,omitempty"`
}

// MonthView is a month grid with its entries grouped by day.
type MonthView struct {
	calendar.Month
	Days map[string][]DayEntry `json:"days"`
	Full map[string]bool       `json:"full"`
}

// Summary counts scheduled and posted entries.
type Summary struct {
	Scheduled      int `json:"scheduled"`
	Posted         int `json:"posted"`
	MonthScheduled int `json:"month_scheduled"`
	MonthPosted    int `json:"month_posted"`
}

// Load fetches ideas and calendar posts.
func (c *Calendar) Load(ctx context.Context) error {
	return c.board.load(ctx)
}

// Posts returns the mirrored posts.
func (c *Calendar) Posts() []models.CalendarPost {
	c.board.mu.RLock()
	defer c.board.mu.RUnlock()
	return append([]models.CalendarPost(nil), c.board.posts...)
}

// Month builds the grid for (year, month0) and joins the posts of every
// visible day with their ideas.
func (c *Calendar) Month(year, month0 int) MonthView {
	grid := calendar.Grid(year, month0)
	visible := make(map[string]bool, len(grid.Cells))
	for _, cell := range grid.Cells {
		visible[cell.Date] = true
	}

	c.board.mu.RLock()
	defer c.board.mu.RUnlock()

	byID := make(map[string]models.Idea, len(c.board.ideas))
	for _, i := range c.board.ideas {
		byID[i.ID] = i
	}

	view := MonthView{Month: grid, Days: map[string][]DayEntry{}, Full: map[string]bool{}}
	for _, p := range c.board.posts {
		if !visible[p.Date] {
			continue
		}
		view.Days[p.Date] = append(view.Days[p.Date], joinPost(p, byID))
	}
	for date, entries := range view.Days {
		view.Full[date] = calendar.IsFull(len(entries))
	}
	return view
}

func joinPost(p models.CalendarPost, byID map[string]models.Idea) DayEntry {
	e := DayEntry{Post: p, ContentType: p.Type}
	idea, ok := byID[p.IdeaID]
	if !ok {
		e.Body = p.Label
		e.Missing = true
	} else {
		e.Body = idea.Body
		e.ImageIdea = idea.ImageIdea
	}
	if !e.ContentType.Valid() {
		e.ContentType = models.ParseCategory(string(idea.ContentType))
	}
	return e
}

// Move drops a post on date. It returns whether date was already full
// without counting the moved post; the move happens either way.
func (c *Calendar) Move(postID, date string) (bool, error) {
	owner, err := c.env.owner()
	if err != nil {
		return false, err
	}
	if !models.ValidDate(date) {
		return false, fmt.Errorf("date %q: %w", date, apperr.ErrInvalid)
	}

	c.board.mu.Lock()
	i := c.board.postIndex(postID)
	if i < 0 {
		c.board.mu.Unlock()
		return false, fmt.Errorf("calendar post %s: %w", postID, apperr.ErrNotFound)
	}
	full := calendar.DropIndicator(c.board.posts, postID, date)
	if c.board.posts[i].Date == date {
		c.board.mu.Unlock()
		return full, nil
	}
	c.board.posts[i].Date = date
	ideaID := c.board.posts[i].IdeaID
	c.board.setScheduledLocked(ideaID, &date)
	c.board.mu.Unlock()

	c.board.queue.Do(scheduleKey(ideaID), func(ctx context.Context) error {
		_, err := c.env.Store.MovePost(ctx, owner, postID, date)
		return err
	})
	return full, nil
}

// TogglePosted flips the posted flag and returns the new value.
func (c *Calendar) TogglePosted(postID string) (bool, error) {
	owner, err := c.env.owner()
	if err != nil {
		return false, err
	}

	c.board.mu.Lock()
	i := c.board.postIndex(postID)
	if i < 0 {
		c.board.mu.Unlock()
		return false, fmt.Errorf("calendar post %s: %w", postID, apperr.ErrNotFound)
	}
	posted := !c.board.posts[i].Posted
	c.board.posts[i].Posted = posted
	c.board.mu.Unlock()

	c.board.queue.Do(postedKey(postID), func(ctx context.Context) error {
		_, err := c.env.Store.UpdateCalendarPost(ctx, owner, postID, models.CalendarPatch{Posted: &posted})
		return err
	})
	return posted, nil
}

// Remove takes a post off the calendar and clears its idea's scheduled date.
func (c *Calendar) Remove(postID string) error {
	owner, err := c.env.owner()
	if err != nil {
		return err
	}

	c.board.mu.Lock()
	i := c.board.postIndex(postID)
	if i < 0 {
		c.board.mu.Unlock()
		return fmt.Errorf("calendar post %s: %w", postID, apperr.ErrNotFound)
	}
	ideaID := c.board.posts[i].IdeaID
	c.board.posts = append(c.board.posts[:i], c.board.posts[i+1:]...)
	c.board.setScheduledLocked(ideaID, nil)
	c.board.mu.Unlock()

	c.board.queue.Do(scheduleKey(ideaID), func(ctx context.Context) error {
		return c.env.Store.RemovePost(ctx, owner, postID)
	})
	return nil
}

// Summary counts all posts and those inside (year, month0).
func (c *Calendar) Summary(year, month0 int) Summary {
	c.board.mu.RLock()
	defer c.board.mu.RUnlock()
	var s Summary
	for _, p := range c.board.posts {
		s.Scheduled++
		in := calendar.Contains(p.Date, year, month0)
		if in {
			s.MonthScheduled++
		}
		if p.Posted {
			s.Posted++
			if in {
				s.MonthPosted++
			}
		}
	}
	return s
}
