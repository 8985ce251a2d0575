// Package storetest holds a behavioural suite that every store.Store
// implementation runs from its own tests.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/postjournal/internal/apperr"
	"github.com/starford/postjournal/internal/models"
	"github.com/starford/postjournal/internal/store"
)

// Opener returns a fresh, empty store for one subtest.
type Opener func(t *testing.T) store.Store

const (
	alice = "owner-alice"
	bob   = "owner-bob"
)

// Run executes the suite against stores produced by open.
func Run(t *testing.T, open Opener) {
	t.Run("JournalLazyCreateAndPatch", func(t *testing.T) { testJournal(t, open(t)) })
	t.Run("JournalListNewestFirst", func(t *testing.T) { testJournalList(t, open(t)) })
	t.Run("IdeaInsertDefaults", func(t *testing.T) { testIdeaInsert(t, open(t)) })
	t.Run("IdeaUpdate", func(t *testing.T) { testIdeaUpdate(t, open(t)) })
	t.Run("ScheduleRoundTrip", func(t *testing.T) { testScheduleRoundTrip(t, open(t)) })
	t.Run("RescheduleReplacesPost", func(t *testing.T) { testReschedule(t, open(t)) })
	t.Run("MovePost", func(t *testing.T) { testMovePost(t, open(t)) })
	t.Run("RemovePost", func(t *testing.T) { testRemovePost(t, open(t)) })
	t.Run("TogglePosted", func(t *testing.T) { testTogglePosted(t, open(t)) })
	t.Run("DeleteIdeaCascades", func(t *testing.T) { testDeleteCascade(t, open(t)) })
	t.Run("Profile", func(t *testing.T) { testProfile(t, open(t)) })
	t.Run("OwnerScoping", func(t *testing.T) { testOwnerScoping(t, open(t)) })
	t.Run("Validation", func(t *testing.T) { testValidation(t, open(t)) })
	t.Run("Search", func(t *testing.T) { testSearch(t, open(t)) })
}

func ptr[T any](v T) *T { return &v }

func mustInsertIdea(t *testing.T, s store.Store, owner, body string) *models.Idea {
	t.Helper()
	idea, err := s.InsertIdea(context.Background(), owner, models.Idea{
		Body:        body,
		ImageIdea:   "image for " + body,
		ContentType: models.CategoryDesign,
		Source:      models.SourceJournal,
	})
	if err != nil {
		t.Fatalf("InsertIdea: %v", err)
	}
	return idea
}

func postsFor(t *testing.T, s store.Store, owner, ideaID string) []models.CalendarPost {
	t.Helper()
	all, err := s.ListCalendarPosts(context.Background(), owner)
	if err != nil {
		t.Fatalf("ListCalendarPosts: %v", err)
	}
	var out []models.CalendarPost
	for _, p := range all {
		if p.IdeaID == ideaID {
			out = append(out, p)
		}
	}
	return out
}

func findIdea(t *testing.T, s store.Store, owner, id string) *models.Idea {
	t.Helper()
	ideas, err := s.ListIdeas(context.Background(), owner)
	if err != nil {
		t.Fatalf("ListIdeas: %v", err)
	}
	for i := range ideas {
		if ideas[i].ID == id {
			return &ideas[i]
		}
	}
	return nil
}

func testJournal(t *testing.T, s store.Store) {
	ctx := context.Background()

	if _, err := s.GetJournalEntry(ctx, alice, "2026-02-01"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("get missing entry err = %v, want ErrNotFound", err)
	}

	e, err := s.UpsertJournalEntry(ctx, alice, "2026-02-01", models.JournalPatch{EntryText: ptr("shipped the thing")})
	if err != nil {
		t.Fatalf("upsert text: %v", err)
	}
	if e.EntryText != "shipped the thing" || len(e.GeneratedIdeas) != 0 || len(e.SavedIndices) != 0 {
		t.Errorf("created entry = %+v", e)
	}

	drafts := []models.Draft{
		{PostCopy: "one", ImageIdea: "a", ContentType: models.CategoryFun},
		{PostCopy: "two", ImageIdea: "b", ContentType: models.CategoryLife},
	}
	_, err = s.UpsertJournalEntry(ctx, alice, "2026-02-01", models.JournalPatch{
		GeneratedIdeas: &drafts,
		SavedIndices:   ptr(models.SavedSet{1: true}),
	})
	if err != nil {
		t.Fatalf("upsert drafts: %v", err)
	}

	got, err := s.GetJournalEntry(ctx, alice, "2026-02-01")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.EntryText != "shipped the thing" {
		t.Errorf("text lost on partial upsert: %q", got.EntryText)
	}
	if len(got.GeneratedIdeas) != 2 || got.GeneratedIdeas[0].ContentType != models.CategoryFun {
		t.Errorf("drafts = %+v", got.GeneratedIdeas)
	}
	if !got.SavedIndices[1] || got.SavedIndices[0] {
		t.Errorf("saved = %v", got.SavedIndices)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("updated_at not set")
	}
}

func testJournalList(t *testing.T, s store.Store) {
	ctx := context.Background()
	for _, d := range []string{"2026-01-02", "2026-01-10", "2026-01-05"} {
		if _, err := s.UpsertJournalEntry(ctx, alice, d, models.JournalPatch{EntryText: ptr(d)}); err != nil {
			t.Fatalf("upsert %s: %v", d, err)
		}
	}
	entries, err := s.ListJournalEntries(ctx, alice)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 || entries[0].Date != "2026-01-10" || entries[2].Date != "2026-01-02" {
		t.Errorf("entries order = %+v", entries)
	}
}

func testIdeaInsert(t *testing.T, s store.Store) {
	ctx := context.Background()
	idea, err := s.InsertIdea(ctx, alice, models.Idea{Body: "gm", ContentType: "unknown", ScheduledDate: ptr("2026-01-01")})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if idea.ID == "" || idea.OwnerID != alice {
		t.Errorf("id/owner = %q/%q", idea.ID, idea.OwnerID)
	}
	if idea.ContentType != models.DefaultCategory {
		t.Errorf("content_type = %q, want fallback", idea.ContentType)
	}
	if idea.Status != models.StatusDraft {
		t.Errorf("status = %q", idea.Status)
	}
	if idea.ScheduledDate != nil {
		t.Error("insert must not schedule")
	}

	if _, err := s.InsertIdea(ctx, alice, models.Idea{ID: idea.ID, Body: "dup"}); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("duplicate insert err = %v, want ErrConflict", err)
	}
}

func testIdeaUpdate(t *testing.T, s store.Store) {
	ctx := context.Background()
	idea := mustInsertIdea(t, s, alice, "first")

	updated, err := s.UpdateIdea(ctx, alice, idea.ID, models.IdeaPatch{Body: ptr("second"), Status: ptr("Ready")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Body != "second" || updated.Title != "second" || updated.Status != "Ready" {
		t.Errorf("updated = %+v", updated)
	}
	if updated.ImageIdea != idea.ImageIdea {
		t.Errorf("image_idea changed: %q", updated.ImageIdea)
	}

	if _, err := s.UpdateIdea(ctx, alice, "missing", models.IdeaPatch{Body: ptr("x")}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("update missing err = %v", err)
	}
}

func testScheduleRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	idea := mustInsertIdea(t, s, alice, "schedule me")

	post, err := s.ScheduleIdea(ctx, alice, idea.ID, ptr("2026-03-04"))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if post == nil || post.ID != models.PostID(idea.ID, "2026-03-04") || post.Type != models.CategoryDesign || post.Posted {
		t.Fatalf("post = %+v", post)
	}
	if got := findIdea(t, s, alice, idea.ID); got.Scheduled() != "2026-03-04" {
		t.Errorf("scheduled_date = %q", got.Scheduled())
	}

	post, err = s.ScheduleIdea(ctx, alice, idea.ID, nil)
	if err != nil {
		t.Fatalf("unschedule: %v", err)
	}
	if post != nil {
		t.Errorf("unschedule returned post %+v", post)
	}
	if n := len(postsFor(t, s, alice, idea.ID)); n != 0 {
		t.Errorf("posts after unschedule = %d, want 0", n)
	}
	if got := findIdea(t, s, alice, idea.ID); got.ScheduledDate != nil {
		t.Errorf("scheduled_date = %v, want nil", *got.ScheduledDate)
	}

	if _, err := s.ScheduleIdea(ctx, alice, idea.ID, nil); err != nil {
		t.Errorf("second unschedule: %v", err)
	}
}

func testReschedule(t *testing.T, s store.Store) {
	ctx := context.Background()
	idea := mustInsertIdea(t, s, alice, "move me")

	for _, d := range []string{"2026-03-04", "2026-03-09", "2026-03-09"} {
		if _, err := s.ScheduleIdea(ctx, alice, idea.ID, ptr(d)); err != nil {
			t.Fatalf("schedule %s: %v", d, err)
		}
	}
	posts := postsFor(t, s, alice, idea.ID)
	if len(posts) != 1 || posts[0].Date != "2026-03-09" {
		t.Errorf("posts = %+v, want one on 2026-03-09", posts)
	}
}

func testMovePost(t *testing.T, s store.Store) {
	ctx := context.Background()
	idea := mustInsertIdea(t, s, alice, "drag me")
	post, err := s.ScheduleIdea(ctx, alice, idea.ID, ptr("2026-12-31"))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	moved, err := s.MovePost(ctx, alice, post.ID, "2027-01-01")
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.ID != post.ID || moved.Date != "2027-01-01" {
		t.Errorf("moved = %+v", moved)
	}

	posts := postsFor(t, s, alice, idea.ID)
	if len(posts) != 1 || posts[0].Date != "2027-01-01" {
		t.Errorf("posts after move = %+v", posts)
	}
	if got := findIdea(t, s, alice, idea.ID); got.Scheduled() != "2027-01-01" {
		t.Errorf("idea scheduled_date = %q", got.Scheduled())
	}

	if _, err := s.MovePost(ctx, alice, "nope", "2027-01-01"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("move missing err = %v", err)
	}
}

func testRemovePost(t *testing.T, s store.Store) {
	ctx := context.Background()
	idea := mustInsertIdea(t, s, alice, "remove me")
	post, err := s.ScheduleIdea(ctx, alice, idea.ID, ptr("2026-05-05"))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := s.RemovePost(ctx, alice, post.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if n := len(postsFor(t, s, alice, idea.ID)); n != 0 {
		t.Errorf("posts = %d", n)
	}
	if got := findIdea(t, s, alice, idea.ID); got == nil || got.ScheduledDate != nil {
		t.Errorf("idea after remove = %+v", got)
	}
}

func testTogglePosted(t *testing.T, s store.Store) {
	ctx := context.Background()
	idea := mustInsertIdea(t, s, alice, "ship it")
	post, err := s.ScheduleIdea(ctx, alice, idea.ID, ptr("2026-05-05"))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	updated, err := s.UpdateCalendarPost(ctx, alice, post.ID, models.CalendarPatch{Posted: ptr(true)})
	if err != nil {
		t.Fatalf("update post: %v", err)
	}
	if !updated.Posted {
		t.Error("posted not set")
	}
	if posts := postsFor(t, s, alice, idea.ID); len(posts) != 1 || !posts[0].Posted {
		t.Errorf("stored posts = %+v", posts)
	}
}

func testDeleteCascade(t *testing.T, s store.Store) {
	ctx := context.Background()
	linked := mustInsertIdea(t, s, alice, "linked")
	plain := mustInsertIdea(t, s, alice, "plain")
	other := mustInsertIdea(t, s, alice, "other")
	if _, err := s.ScheduleIdea(ctx, alice, linked.ID, ptr("2026-06-01")); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if _, err := s.ScheduleIdea(ctx, alice, other.ID, ptr("2026-06-01")); err != nil {
		t.Fatalf("schedule other: %v", err)
	}

	if err := s.DeleteIdea(ctx, alice, linked.ID); err != nil {
		t.Fatalf("delete linked: %v", err)
	}
	if findIdea(t, s, alice, linked.ID) != nil {
		t.Error("linked idea still present")
	}
	if n := len(postsFor(t, s, alice, linked.ID)); n != 0 {
		t.Errorf("linked posts = %d, want 0", n)
	}

	if err := s.DeleteIdea(ctx, alice, plain.ID); err != nil {
		t.Fatalf("delete plain: %v", err)
	}
	ideas, _ := s.ListIdeas(ctx, alice)
	if len(ideas) != 1 || ideas[0].ID != other.ID {
		t.Errorf("remaining ideas = %+v", ideas)
	}
	if n := len(postsFor(t, s, alice, other.ID)); n != 1 {
		t.Errorf("unrelated posts = %d, want 1", n)
	}

	if err := s.DeleteIdea(ctx, alice, plain.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
}

func testProfile(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.GetProfile(ctx, alice); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("missing profile err = %v", err)
	}

	p, err := s.UpsertProfile(ctx, alice, models.ProfilePatch{
		APIKey: ptr("sk-test"),
		Topics: ptr([]string{"AI", "design"}),
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if p.OwnerID != alice || p.APIKey != "sk-test" || len(p.Topics) != 2 || p.OnboardingComplete {
		t.Errorf("profile = %+v", p)
	}

	if _, err := s.UpsertProfile(ctx, alice, models.ProfilePatch{OnboardingComplete: ptr(true)}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, err := s.GetProfile(ctx, alice)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.OnboardingComplete || got.APIKey != "sk-test" || len(got.Topics) != 2 {
		t.Errorf("profile after partial upsert = %+v", got)
	}
}

func testOwnerScoping(t *testing.T, s store.Store) {
	ctx := context.Background()
	idea := mustInsertIdea(t, s, alice, "mine")
	if _, err := s.ScheduleIdea(ctx, alice, idea.ID, ptr("2026-07-07")); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if _, err := s.UpsertJournalEntry(ctx, alice, "2026-07-07", models.JournalPatch{EntryText: ptr("private")}); err != nil {
		t.Fatalf("journal: %v", err)
	}

	ideas, _ := s.ListIdeas(ctx, bob)
	posts, _ := s.ListCalendarPosts(ctx, bob)
	entries, _ := s.ListJournalEntries(ctx, bob)
	if len(ideas)+len(posts)+len(entries) != 0 {
		t.Errorf("bob sees alice rows: %d ideas, %d posts, %d entries", len(ideas), len(posts), len(entries))
	}
	if _, err := s.UpdateIdea(ctx, bob, idea.ID, models.IdeaPatch{Body: ptr("hijack")}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("cross-owner update err = %v", err)
	}
	if err := s.DeleteIdea(ctx, bob, idea.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("cross-owner delete err = %v", err)
	}
	if _, err := s.GetJournalEntry(ctx, bob, "2026-07-07"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("cross-owner journal err = %v", err)
	}
}

func testValidation(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.ListIdeas(ctx, ""); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("empty owner err = %v", err)
	}
	if _, err := s.UpsertJournalEntry(ctx, alice, "01/02/2026", models.JournalPatch{}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("bad date err = %v", err)
	}
	idea := mustInsertIdea(t, s, alice, "x")
	if _, err := s.ScheduleIdea(ctx, alice, idea.ID, ptr("tomorrow")); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("bad schedule date err = %v", err)
	}
}

func testSearch(t *testing.T, s store.Store) {
	ctx := context.Background()
	for date, text := range map[string]string{
		"2026-03-01": "Morning COFFEE and a plan",
		"2026-03-02": "coffee again",
		"2026-03-03": "tea",
	} {
		if _, err := s.UpsertJournalEntry(ctx, alice, date, models.JournalPatch{EntryText: ptr(text)}); err != nil {
			t.Fatalf("journal: %v", err)
		}
	}
	coffee := mustInsertIdea(t, s, alice, "coffee brewing guide")
	mustInsertIdea(t, s, alice, "100% done")
	mustInsertIdea(t, s, bob, "bob likes coffee")

	hits, err := s.Search(ctx, alice, "  coffee ", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []models.SearchHit{
		{Kind: models.HitJournal, ID: "2026-03-02"},
		{Kind: models.HitJournal, ID: "2026-03-01"},
		{Kind: models.HitIdea, ID: coffee.ID},
	}
	if len(hits) != len(want) {
		t.Fatalf("hits = %+v", hits)
	}
	for i, w := range want {
		if hits[i].Kind != w.Kind || hits[i].ID != w.ID {
			t.Errorf("hit %d = %+v, want %s %s", i, hits[i], w.Kind, w.ID)
		}
	}
	if hits[1].Snippet != "Morning COFFEE and a plan" {
		t.Errorf("snippet = %q", hits[1].Snippet)
	}

	if hits, _ := s.Search(ctx, alice, "coffee", 2); len(hits) != 2 || hits[1].Kind != models.HitJournal {
		t.Errorf("limited hits = %+v", hits)
	}
	if hits, _ := s.Search(ctx, alice, "%", 0); len(hits) != 1 || hits[0].Snippet != "100% done" {
		t.Errorf("wildcard is not literal: %+v", hits)
	}
	if _, err := s.Search(ctx, alice, " ", 0); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("blank query err = %v", err)
	}
}
