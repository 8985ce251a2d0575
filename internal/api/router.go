package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/postjournal/internal/auth"
	"github.com/starford/postjournal/internal/sse"
	"github.com/starford/postjournal/internal/store"
)

// Options configures NewRouter.
type Options struct {
	// Verifier checks bearer tokens. Nil disables auth and every request acts
	// as DefaultOwner.
	Verifier     *auth.Verifier
	DefaultOwner string
	// CORSOrigins lists browser origins allowed to call the API.
	CORSOrigins []string
	// Events, if non-nil, receives change notifications and is mounted at
	// GET /events inside the auth group.
	Events *sse.Broker
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(st store.Store, opts Options) chi.Router {
	h := NewHandler(st, opts.Events)

	r := chi.NewRouter()
	r.Use(CORSMiddleware(opts.CORSOrigins))
	r.Use(AuthMiddleware(opts.Verifier, opts.DefaultOwner))

	r.Get("/profile", h.GetProfile)
	r.Put("/profile", h.UpdateProfile)

	r.Get("/journal", h.ListJournal)
	r.Get("/journal/{date}", h.GetJournal)
	r.Put("/journal/{date}", h.UpsertJournal)

	r.Get("/ideas", h.ListIdeas)
	r.Post("/ideas", h.CreateIdea)
	r.Patch("/ideas/{id}", h.UpdateIdea)
	r.Delete("/ideas/{id}", h.DeleteIdea)
	r.Post("/ideas/{id}/schedule", h.ScheduleIdea)

	r.Get("/calendar", h.ListCalendar)
	r.Patch("/calendar/{id}", h.UpdateCalendarPost)
	r.Delete("/calendar/{id}", h.RemoveCalendarPost)

	r.Get("/search", h.Search)

	if opts.Events != nil {
		r.Get("/events", opts.Events.ServeHTTP)
	}

	return r
}
