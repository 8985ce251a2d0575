package models

import (
	"time"

	"github.com/google/uuid"
)

// Source records where an idea came from.
type Source string

const (
	SourceJournal  Source = "journal"
	SourceTrending Source = "trending"
	SourceManual   Source = "manual"
)

// Defaults applied to freshly saved ideas.
const (
	StatusDraft      = "Draft"
	StatusDraftColor = "#FFD93D"
	TitleLength      = 60
)

// Idea is a saved draft in the idea bank.
type Idea struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	ImageIdea     string    `json:"image_idea"`
	ContentType   Category  `json:"content_type"`
	Status        string    `json:"status"`
	StatusColor   string    `json:"status_color"`
	Source        Source    `json:"source"`
	TrendSource   string    `json:"trend_source,omitempty"`
	FromDate      string    `json:"from_date,omitempty"`
	ScheduledDate *string   `json:"scheduled_date"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewIdea builds an idea from a draft with a fresh id and the default status.
func NewIdea(d Draft, source Source, fromDate string, now time.Time) Idea {
	return Idea{
		ID:          uuid.NewString(),
		Title:       Snippet(d.PostCopy, TitleLength),
		Body:        d.PostCopy,
		ImageIdea:   d.ImageIdea,
		ContentType: ParseCategory(string(d.ContentType)),
		Status:      StatusDraft,
		StatusColor: StatusDraftColor,
		Source:      source,
		TrendSource: d.TrendSource,
		FromDate:    fromDate,
		CreatedAt:   now.UTC(),
	}
}

// Scheduled returns the scheduled date or "".
func (i Idea) Scheduled() string {
	if i.ScheduledDate == nil {
		return ""
	}
	return *i.ScheduledDate
}

// IdeaPatch holds inline edits. Nil fields are left alone.
type IdeaPatch struct {
	Body        *string   `json:"body,omitempty"`
	ImageIdea   *string   `json:"image_idea,omitempty"`
	ContentType *Category `json:"content_type,omitempty"`
	Status      *string   `json:"status,omitempty"`
	StatusColor *string   `json:"status_color,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p IdeaPatch) Empty() bool {
	return p.Body == nil && p.ImageIdea == nil && p.ContentType == nil &&
		p.Status == nil && p.StatusColor == nil
}

// Merge returns p with the set fields of next layered on top.
func (p IdeaPatch) Merge(next IdeaPatch) IdeaPatch {
	if next.Body != nil {
		p.Body = next.Body
	}
	if next.ImageIdea != nil {
		p.ImageIdea = next.ImageIdea
	}
	if next.ContentType != nil {
		p.ContentType = next.ContentType
	}
	if next.Status != nil {
		p.Status = next.Status
	}
	if next.StatusColor != nil {
		p.StatusColor = next.StatusColor
	}
	return p
}

// Apply copies the set fields of p onto i. The title follows the body.
func (p IdeaPatch) Apply(i *Idea) {
	if p.Body != nil {
		i.Body = *p.Body
		i.Title = Snippet(i.Body, TitleLength)
	}
	if p.ImageIdea != nil {
		i.ImageIdea = *p.ImageIdea
	}
	if p.ContentType != nil {
		i.ContentType = ParseCategory(string(*p.ContentType))
	}
	if p.Status != nil {
		i.Status = *p.Status
	}
	if p.StatusColor != nil {
		i.StatusColor = *p.StatusColor
	}
}
