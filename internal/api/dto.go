package api

import "github.com/starford/postjournal/internal/models"

// JournalListResponse wraps the journal history.
type JournalListResponse struct {
	Entries []models.JournalEntry `json:"entries" validate:"required"`
}

// IdeaListResponse wraps the idea bank.
type IdeaListResponse struct {
	Ideas []models.Idea `json:"ideas" validate:"required"`
}

// CalendarListResponse wraps every calendar post.
type CalendarListResponse struct {
	Posts []models.CalendarPost `json:"posts" validate:"required"`
}

// ScheduleRequest puts an idea on a date. A null date unschedules it.
type ScheduleRequest struct {
	Date *string `json:"date" example:"2026-10-16"`
}

// ScheduleResponse carries the new post, or null after unscheduling.
type ScheduleResponse struct {
	Post *models.CalendarPost `json:"post"`
}

// CalendarPatchRequest flips posted and/or moves the post to another date.
type CalendarPatchRequest struct {
	Posted *bool   `json:"posted,omitempty"`
	Date   *string `json:"date,omitempty" example:"2026-10-17"`
}

// SearchResponse lists the journal entries and ideas matching a query.
type SearchResponse struct {
	Hits []models.SearchHit `json:"hits" validate:"required"`
}
