package models

import "time"

// Draft is a generated, unsaved idea.
type Draft struct {
	PostCopy    string   `json:"post_copy"`
	ImageIdea   string   `json:"image_idea"`
	ContentType Category `json:"content_type"`
	TrendSource string   `json:"trend_source,omitempty"`
}

// SavedSet marks which drafts (by position) were saved to the idea bank.
type SavedSet map[int]bool

// JournalEntry is one owner's notes for one day.
type JournalEntry struct {
	Date           string    `json:"date"`
	OwnerID        string    `json:"owner_id"`
	EntryText      string    `json:"entry_text"`
	GeneratedIdeas []Draft   `json:"generated_ideas"`
	SavedIndices   SavedSet  `json:"saved_indices"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// JournalPatch carries the fields to change on an upsert. Nil fields are left alone.
type JournalPatch struct {
	EntryText      *string   `json:"entry_text,omitempty"`
	GeneratedIdeas *[]Draft  `json:"generated_ideas,omitempty"`
	SavedIndices   *SavedSet `json:"saved_indices,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p JournalPatch) Empty() bool {
	return p.EntryText == nil && p.GeneratedIdeas == nil && p.SavedIndices == nil
}

// Apply copies the set fields of p onto e.
func (p JournalPatch) Apply(e *JournalEntry) {
	if p.EntryText != nil {
		e.EntryText = *p.EntryText
	}
	if p.GeneratedIdeas != nil {
		e.GeneratedIdeas = append([]Draft(nil), (*p.GeneratedIdeas)...)
	}
	if p.SavedIndices != nil {
		e.SavedIndices = (*p.SavedIndices).Clone()
	}
}

// Clone returns an independent copy of s.
func (s SavedSet) Clone() SavedSet {
	out := make(SavedSet, len(s))
	for k, v := range s {
		if v {
			out[k] = true
		}
	}
	return out
}

// Normalize fills nil collections so the entry encodes as [] and {}.
func (e *JournalEntry) Normalize() {
	if e.GeneratedIdeas == nil {
		e.GeneratedIdeas = []Draft{}
	}
	if e.SavedIndices == nil {
		e.SavedIndices = SavedSet{}
	}
}
