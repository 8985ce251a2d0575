package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/postjournal/internal/auth"
	"github.com/starford/postjournal/internal/models"
	"github.com/starford/postjournal/internal/sse"
	"github.com/starford/postjournal/internal/store"
)

// Handler holds API route handlers.
type Handler struct {
	store  store.Store
	events *sse.Broker
}

// NewHandler creates a new Handler. events may be nil.
func NewHandler(st store.Store, events *sse.Broker) *Handler {
	return &Handler{store: st, events: events}
}

func (h *Handler) publish(r *http.Request, kind, id string) {
	if h.events != nil {
		h.events.PublishChange(auth.OwnerFrom(r.Context()), kind, id)
	}
}

func owner(r *http.Request) string {
	return auth.OwnerFrom(r.Context())
}

// GetProfile handles GET /api/profile.
//
//	@Summary		Get the owner's profile
//	@Tags			profile
//	@Produce		json
//	@Success		200	{object}	models.Profile
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/profile [get]
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.store.GetProfile(r.Context(), owner(r))
	if err != nil {
		writeStoreError(w, r, "get profile", err)
		return
	}
	writeReadJSON(w, r, p)
}

// UpdateProfile handles PUT /api/profile. Only the fields present are written.
//
//	@Summary		Create or update the owner's profile
//	@Tags			profile
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.ProfilePatch	true	"Fields to change"
//	@Success		200		{object}	models.Profile
//	@Security		BearerAuth
//	@Router			/profile [put]
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var patch models.ProfilePatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	p, err := h.store.UpsertProfile(r.Context(), owner(r), patch)
	if err != nil {
		writeStoreError(w, r, "update profile", err)
		return
	}
	h.publish(r, sse.ProfileUpdated, p.OwnerID)
	writeJSON(w, http.StatusOK, p)
}

// ListJournal handles GET /api/journal.
func (h *Handler) ListJournal(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ListJournalEntries(r.Context(), owner(r))
	if err != nil {
		writeStoreError(w, r, "list journal", err)
		return
	}
	writeReadJSON(w, r, JournalListResponse{Entries: entries})
}

// GetJournal handles GET /api/journal/{date}.
//
//	@Summary		Get the journal entry of one day
//	@Tags			journal
//	@Produce		json
//	@Param			date	path		string	true	"YYYY-MM-DD"
//	@Success		200		{object}	models.JournalEntry
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/journal/{date} [get]
func (h *Handler) GetJournal(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	e, err := h.store.GetJournalEntry(r.Context(), owner(r), date)
	if err != nil {
		writeStoreError(w, r, "get journal entry", err)
		return
	}
	writeReadJSON(w, r, e)
}

// UpsertJournal handles PUT /api/journal/{date}. The entry is created on first
// write; only the fields present are replaced.
func (h *Handler) UpsertJournal(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	var patch models.JournalPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	e, err := h.store.UpsertJournalEntry(r.Context(), owner(r), date, patch)
	if err != nil {
		writeStoreError(w, r, "upsert journal entry", err)
		return
	}
	h.publish(r, sse.JournalUpdated, date)
	writeJSON(w, http.StatusOK, e)
}

// ListIdeas handles GET /api/ideas.
//
//	@Summary		List the idea bank, newest first
//	@Tags			ideas
//	@Produce		json
//	@Success		200	{object}	IdeaListResponse
//	@Security		BearerAuth
//	@Router			/ideas [get]
func (h *Handler) ListIdeas(w http.ResponseWriter, r *http.Request) {
	ideas, err := h.store.ListIdeas(r.Context(), owner(r))
	if err != nil {
		writeStoreError(w, r, "list ideas", err)
		return
	}
	writeReadJSON(w, r, IdeaListResponse{Ideas: ideas})
}

// CreateIdea handles POST /api/ideas. The client may choose the id.
func (h *Handler) CreateIdea(w http.ResponseWriter, r *http.Request) {
	var idea models.Idea
	if !decodeJSON(w, r, &idea) {
		return
	}
	if strings.TrimSpace(idea.Body) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("body is required"))
		return
	}
	stored, err := h.store.InsertIdea(r.Context(), owner(r), idea)
	if err != nil {
		writeStoreError(w, r, "create idea", err)
		return
	}
	h.publish(r, sse.IdeaCreated, stored.ID)
	writeJSON(w, http.StatusCreated, stored)
}

// UpdateIdea handles PATCH /api/ideas/{id}.
func (h *Handler) UpdateIdea(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch models.IdeaPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	idea, err := h.store.UpdateIdea(r.Context(), owner(r), id, patch)
	if err != nil {
		writeStoreError(w, r, "update idea", err)
		return
	}
	h.publish(r, sse.IdeaUpdated, id)
	writeJSON(w, http.StatusOK, idea)
}

// DeleteIdea handles DELETE /api/ideas/{id}. Linked calendar posts go with it.
//
//	@Summary		Delete an idea and its calendar posts
//	@Tags			ideas
//	@Param			id	path	string	true	"Idea id"
//	@Success		204	"Idea deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ideas/{id} [delete]
func (h *Handler) DeleteIdea(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.DeleteIdea(r.Context(), owner(r), id); err != nil {
		writeStoreError(w, r, "delete idea", err)
		return
	}
	h.publish(r, sse.IdeaDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}

// ScheduleIdea handles POST /api/ideas/{id}/schedule.
//
//	@Summary		Schedule or unschedule an idea
//	@Tags			ideas
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Idea id"
//	@Param			body	body		ScheduleRequest	true	"Target date, null to unschedule"
//	@Success		200		{object}	ScheduleResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ideas/{id}/schedule [post]
func (h *Handler) ScheduleIdea(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ScheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	post, err := h.store.ScheduleIdea(r.Context(), owner(r), id, req.Date)
	if err != nil {
		writeStoreError(w, r, "schedule idea", err)
		return
	}
	h.publish(r, sse.IdeaUpdated, id)
	writeJSON(w, http.StatusOK, ScheduleResponse{Post: post})
}

// ListCalendar handles GET /api/calendar.
func (h *Handler) ListCalendar(w http.ResponseWriter, r *http.Request) {
	posts, err := h.store.ListCalendarPosts(r.Context(), owner(r))
	if err != nil {
		writeStoreError(w, r, "list calendar", err)
		return
	}
	writeReadJSON(w, r, CalendarListResponse{Posts: posts})
}

// UpdateCalendarPost handles PATCH /api/calendar/{id}. A date moves the post
// together with its idea; posted flips the flag. Both may be sent at once.
func (h *Handler) UpdateCalendarPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req CalendarPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Date == nil && req.Posted == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("date or posted is required"))
		return
	}

	var (
		post *models.CalendarPost
		err  error
	)
	if req.Date != nil {
		if post, err = h.store.MovePost(r.Context(), owner(r), id, *req.Date); err != nil {
			writeStoreError(w, r, "move calendar post", err)
			return
		}
	}
	if req.Posted != nil {
		if post, err = h.store.UpdateCalendarPost(r.Context(), owner(r), id, models.CalendarPatch{Posted: req.Posted}); err != nil {
			writeStoreError(w, r, "update calendar post", err)
			return
		}
	}
	h.publish(r, sse.CalendarUpdated, id)
	writeJSON(w, http.StatusOK, post)
}

// RemoveCalendarPost handles DELETE /api/calendar/{id}. The idea stays in the
// bank, unscheduled.
func (h *Handler) RemoveCalendarPost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.store.RemovePost(r.Context(), owner(r), id); err != nil {
		writeStoreError(w, r, "remove calendar post", err)
		return
	}
	h.publish(r, sse.CalendarUpdated, id)
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search?q=...&limit=...
//
//	@Summary		Find journal entries and ideas containing a text
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Text to find"
//	@Param			limit	query		int		false	"Maximum hits (default 20, max 100)"
//	@Success		200		{object}	SearchResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("limit must be a number"))
			return
		}
		limit = n
	}
	hits, err := h.store.Search(r.Context(), owner(r), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeStoreError(w, r, "search", err)
		return
	}
	if hits == nil {
		hits = []models.SearchHit{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Hits: hits})
}
