package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/starford/postjournal/internal/models"
	"github.com/starford/postjournal/internal/store"
)

// wire shapes of the list and schedule responses
type (
	journalList struct {
		Entries []models.JournalEntry `json:"entries"`
	}
	ideaList struct {
		Ideas []models.Idea `json:"ideas"`
	}
	postList struct {
		Posts []models.CalendarPost `json:"posts"`
	}
	scheduleBody struct {
		Date *string `json:"date"`
	}
	scheduleResult struct {
		Post *models.CalendarPost `json:"post"`
	}
	searchResult struct {
		Hits []models.SearchHit `json:"hits"`
	}
	calendarBody struct {
		Posted *bool   `json:"posted,omitempty"`
		Date   *string `json:"date,omitempty"`
	}
)

func (c *Client) GetJournalEntry(ctx context.Context, owner, date string) (*models.JournalEntry, error) {
	if err := store.RequireDate(date); err != nil {
		return nil, err
	}
	var e models.JournalEntry
	if err := c.do(ctx, owner, http.MethodGet, "/journal/"+date, nil, &e); err != nil {
		return nil, err
	}
	e.Normalize()
	return &e, nil
}

func (c *Client) UpsertJournalEntry(ctx context.Context, owner, date string, patch models.JournalPatch) (*models.JournalEntry, error) {
	if err := store.RequireDate(date); err != nil {
		return nil, err
	}
	var e models.JournalEntry
	if err := c.do(ctx, owner, http.MethodPut, "/journal/"+date, patch, &e); err != nil {
		return nil, err
	}
	e.Normalize()
	return &e, nil
}

func (c *Client) ListJournalEntries(ctx context.Context, owner string) ([]models.JournalEntry, error) {
	var out journalList
	if err := c.do(ctx, owner, http.MethodGet, "/journal", nil, &out); err != nil {
		return nil, err
	}
	for i := range out.Entries {
		out.Entries[i].Normalize()
	}
	return out.Entries, nil
}

func (c *Client) ListIdeas(ctx context.Context, owner string) ([]models.Idea, error) {
	var out ideaList
	if err := c.do(ctx, owner, http.MethodGet, "/ideas", nil, &out); err != nil {
		return nil, err
	}
	return out.Ideas, nil
}

func (c *Client) InsertIdea(ctx context.Context, owner string, idea models.Idea) (*models.Idea, error) {
	var out models.Idea
	if err := c.do(ctx, owner, http.MethodPost, "/ideas", idea, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateIdea(ctx context.Context, owner, id string, patch models.IdeaPatch) (*models.Idea, error) {
	var out models.Idea
	if err := c.do(ctx, owner, http.MethodPatch, "/ideas/"+esc(id), patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteIdea(ctx context.Context, owner, id string) error {
	return c.do(ctx, owner, http.MethodDelete, "/ideas/"+esc(id), nil, nil)
}

func (c *Client) ListCalendarPosts(ctx context.Context, owner string) ([]models.CalendarPost, error) {
	var out postList
	if err := c.do(ctx, owner, http.MethodGet, "/calendar", nil, &out); err != nil {
		return nil, err
	}
	return out.Posts, nil
}

func (c *Client) UpdateCalendarPost(ctx context.Context, owner, id string, patch models.CalendarPatch) (*models.CalendarPost, error) {
	var out models.CalendarPost
	if err := c.do(ctx, owner, http.MethodPatch, "/calendar/"+esc(id), calendarBody{Posted: patch.Posted}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ScheduleIdea(ctx context.Context, owner, ideaID string, date *string) (*models.CalendarPost, error) {
	if date != nil {
		if err := store.RequireDate(*date); err != nil {
			return nil, err
		}
	}
	var out scheduleResult
	if err := c.do(ctx, owner, http.MethodPost, "/ideas/"+esc(ideaID)+"/schedule", scheduleBody{Date: date}, &out); err != nil {
		return nil, err
	}
	return out.Post, nil
}

func (c *Client) MovePost(ctx context.Context, owner, postID, date string) (*models.CalendarPost, error) {
	if err := store.RequireDate(date); err != nil {
		return nil, err
	}
	var out models.CalendarPost
	if err := c.do(ctx, owner, http.MethodPatch, "/calendar/"+esc(postID), calendarBody{Date: &date}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemovePost(ctx context.Context, owner, postID string) error {
	return c.do(ctx, owner, http.MethodDelete, "/calendar/"+esc(postID), nil, nil)
}

func (c *Client) GetProfile(ctx context.Context, owner string) (*models.Profile, error) {
	var p models.Profile
	if err := c.do(ctx, owner, http.MethodGet, "/profile", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpsertProfile(ctx context.Context, owner string, patch models.ProfilePatch) (*models.Profile, error) {
	var p models.Profile
	if err := c.do(ctx, owner, http.MethodPut, "/profile", patch, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Search(ctx context.Context, owner, query string, limit int) ([]models.SearchHit, error) {
	q, limit, err := store.PrepareSearch(query, limit)
	if err != nil {
		return nil, err
	}
	params := url.Values{"q": {q}, "limit": {strconv.Itoa(limit)}}
	var out searchResult
	if err := c.do(ctx, owner, http.MethodGet, "/search?"+params.Encode(), nil, &out); err != nil {
		return nil, err
	}
	if out.Hits == nil {
		out.Hits = []models.SearchHit{}
	}
	return out.Hits, nil
}
