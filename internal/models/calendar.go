package models

// CalendarPost links an idea to the day it is scheduled for.
type CalendarPost struct {
	ID      string   `json:"id"`
	OwnerID string   `json:"owner_id"`
	IdeaID  string   `json:"idea_id"`
	Date    string   `json:"date"`
	Label   string   `json:"label"`
	Type    Category `json:"type"`
	Posted  bool     `json:"posted"`
}

// PostID derives the calendar post id for an idea on a date.
func PostID(ideaID, date string) string {
	return ideaID + "_" + date
}

// NewCalendarPost snapshots idea for the given date.
func NewCalendarPost(idea Idea, date string) CalendarPost {
	ct := idea.ContentType
	if !ct.Valid() {
		ct = DefaultCategory
	}
	return CalendarPost{
		ID:      PostID(idea.ID, date),
		OwnerID: idea.OwnerID,
		IdeaID:  idea.ID,
		Date:    date,
		Label:   Snippet(idea.Body, TitleLength),
		Type:    ct,
	}
}

// CalendarPatch holds the mutable calendar fields.
type CalendarPatch struct {
	Posted *bool `json:"posted,omitempty"`
}
