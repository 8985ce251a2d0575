package planner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/starford/postjournal/internal/apperr"
	"github.com/starford/postjournal/internal/generate"
	"github.com/starford/postjournal/internal/models"
	"github.com/starford/postjournal/internal/prefs"
	"github.com/starford/postjournal/internal/session"
	"github.com/starford/postjournal/internal/testutil"
)

const owner = "owner-1"

type fakeGen struct {
	drafts []models.Draft
	err    error

	mu     sync.Mutex
	topics []string
	key    string
}

func (g *fakeGen) FromJournal(ctx context.Context, apiKey, tone, entry string) ([]models.Draft, error) {
	if apiKey == "" {
		return nil, generate.ErrMissingAPIKey
	}
	g.mu.Lock()
	g.key = apiKey
	g.mu.Unlock()
	return g.drafts, g.err
}

func (g *fakeGen) Trending(ctx context.Context, apiKey, tone string, topics []string) ([]models.Draft, error) {
	g.mu.Lock()
	g.topics = topics
	g.mu.Unlock()
	return g.drafts, g.err
}

type staticProfile struct{ p *models.Profile }

func (s staticProfile) Profile() session.ProfileState { return session.LoadedProfile(s.p) }

type harness struct {
	planner *Planner
	store   *testutil.CountingStore
	gen     *fakeGen

	mu       sync.Mutex
	reported []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store: testutil.NewCountingStore(testutil.TestStore(t)),
		gen: &fakeGen{drafts: []models.Draft{
			{PostCopy: "first draft", ImageIdea: "img", ContentType: models.CategoryDesign},
			{PostCopy: "second draft", ContentType: models.CategoryFun, TrendSource: "launch"},
		}},
	}
	ps, err := prefs.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	profile := staticProfile{&models.Profile{OwnerID: owner, APIKey: "sk", Topics: []string{"AI"}, OnboardingComplete: true}}
	env := Env{
		Store:  h.store,
		Owner:  func() string { return owner },
		Logger: testutil.Logger(),
		OnError: func(key string, err error) {
			h.mu.Lock()
			h.reported = append(h.reported, key)
			h.mu.Unlock()
		},
	}
	h.planner = New(env, h.gen, profile, ps, Delays{Journal: 30 * time.Millisecond, Ideas: 30 * time.Millisecond})
	t.Cleanup(func() { h.planner.Close(context.Background()) })
	return h
}

func (h *harness) flush(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.planner.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func (h *harness) idea(t *testing.T, body string, ct models.Category) models.Idea {
	t.Helper()
	idea, err := h.planner.Ideas.Create(context.Background(), models.Draft{PostCopy: body, ContentType: ct})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return *idea
}

func ptr(s string) *string { return &s }

func TestJournalTextBurstWritesOnce(t *testing.T) {
	h := newHarness(t)
	j := h.planner.Journal
	date := "2026-10-16"

	for _, s := range []string{"w", "wo", "wor", "word"} {
		if err := j.SetText(date, s); err != nil {
			t.Fatal(err)
		}
	}
	if j.Entry(date).EntryText != "word" {
		t.Errorf("local text = %q", j.Entry(date).EntryText)
	}
	h.flush(t)

	if n := h.store.Calls("UpsertJournalEntry"); n != 1 {
		t.Errorf("upserts = %d, want 1", n)
	}
	e, err := h.store.GetJournalEntry(context.Background(), owner, date)
	if err != nil || e.EntryText != "word" {
		t.Errorf("stored = %+v, %v", e, err)
	}
}

func TestJournalGenerateAndSave(t *testing.T) {
	h := newHarness(t)
	j := h.planner.Journal
	ctx := context.Background()
	date := "2026-10-16"

	if _, err := j.Load(ctx, date); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := j.SetText(date, "shipped the calendar"); err != nil {
		t.Fatal(err)
	}
	drafts, err := j.Generate(ctx, date)
	if err != nil || len(drafts) != 2 {
		t.Fatalf("Generate = %v, %v", drafts, err)
	}

	idea, err := j.SaveDraft(ctx, date, 1)
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if idea.Source != models.SourceJournal || idea.FromDate != date || idea.Title != "second draft" {
		t.Errorf("idea = %+v", idea)
	}
	if _, err := j.SaveDraft(ctx, date, 1); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("second save err = %v", err)
	}
	if _, err := j.SaveDraft(ctx, date, 5); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("out of range err = %v", err)
	}
	if _, ok := h.planner.Ideas.Get(idea.ID); !ok {
		t.Error("saved idea missing from idea bank mirror")
	}
	h.flush(t)

	e, err := h.store.GetJournalEntry(ctx, owner, date)
	if err != nil {
		t.Fatal(err)
	}
	if len(e.GeneratedIdeas) != 2 || !e.SavedIndices[1] || e.SavedIndices[0] {
		t.Errorf("stored entry = %+v", e)
	}

	// Regenerating replaces drafts and clears the saved markers.
	if _, err := j.Generate(ctx, date); err != nil {
		t.Fatal(err)
	}
	h.flush(t)
	e, _ = h.store.GetJournalEntry(ctx, owner, date)
	if len(e.SavedIndices) != 0 {
		t.Errorf("saved markers after regenerate = %v", e.SavedIndices)
	}
}

func TestConcurrentDraftSavesInsertOnce(t *testing.T) {
	h := newHarness(t)
	j := h.planner.Journal
	ctx := context.Background()
	date := "2026-10-17"

	if err := j.SetText(date, "notes"); err != nil {
		t.Fatal(err)
	}
	if _, err := j.Generate(ctx, date); err != nil {
		t.Fatal(err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for n := 0; n < 8; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := j.SaveDraft(ctx, date, 0)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperr.ErrConflict):
				conflicts++
			default:
				t.Errorf("SaveDraft: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || conflicts != 7 {
		t.Errorf("saves = %d, conflicts = %d, want 1 and 7", ok, conflicts)
	}
	if n := h.store.Calls("InsertIdea"); n != 1 {
		t.Errorf("InsertIdea calls = %d, want 1", n)
	}
}

func TestFailedDraftSaveCanBeRetried(t *testing.T) {
	h := newHarness(t)
	j := h.planner.Journal
	ctx := context.Background()
	date := "2026-10-18"

	if err := j.SetText(date, "notes"); err != nil {
		t.Fatal(err)
	}
	if _, err := j.Generate(ctx, date); err != nil {
		t.Fatal(err)
	}

	h.store.FailWith("InsertIdea", errors.New("offline"))
	if _, err := j.SaveDraft(ctx, date, 1); err == nil {
		t.Fatal("expected insert error")
	}
	if j.Entry(date).SavedIndices[1] {
		t.Error("failed save left the draft marked")
	}

	h.store.FailWith("InsertIdea", nil)
	if _, err := j.SaveDraft(ctx, date, 1); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !j.Entry(date).SavedIndices[1] {
		t.Error("draft not marked after save")
	}
}

func TestJournalGenerateWithoutKey(t *testing.T) {
	h := newHarness(t)
	j := newJournal(h.planner.Journal.env, h.planner.Journal.queue, h.gen, staticProfile{}, h.planner.Ideas)
	if _, err := j.Generate(context.Background(), "2026-10-16"); !errors.Is(err, generate.ErrMissingAPIKey) {
		t.Errorf("err = %v", err)
	}
	if n := h.store.Calls("UpsertJournalEntry"); n != 0 {
		t.Errorf("upserts = %d, want 0", n)
	}
}

func TestSignedOutRejectsWrites(t *testing.T) {
	h := newHarness(t)
	env := h.planner.Journal.env
	env.Owner = func() string { return "" }
	p := New(env, h.gen, nil, nil, Delays{})
	if err := p.Journal.SetText("2026-10-16", "x"); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("SetText err = %v", err)
	}
	if err := p.Ideas.Load(context.Background()); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("Load err = %v", err)
	}
}

func TestIdeaEditsMergeIntoOneWrite(t *testing.T) {
	h := newHarness(t)
	idea := h.idea(t, "draft body", models.CategoryLife)

	if err := h.planner.Ideas.Update(idea.ID, models.IdeaPatch{Body: ptr("new body")}); err != nil {
		t.Fatal(err)
	}
	if err := h.planner.Ideas.Update(idea.ID, models.IdeaPatch{ImageIdea: ptr("new image")}); err != nil {
		t.Fatal(err)
	}
	got, _ := h.planner.Ideas.Get(idea.ID)
	if got.Body != "new body" || got.ImageIdea != "new image" || got.Title != "new body" {
		t.Errorf("mirror = %+v", got)
	}
	h.flush(t)

	if n := h.store.Calls("UpdateIdea"); n != 1 {
		t.Errorf("UpdateIdea calls = %d, want 1", n)
	}
	list, _ := h.store.ListIdeas(context.Background(), owner)
	if list[0].Body != "new body" || list[0].ImageIdea != "new image" {
		t.Errorf("stored = %+v", list[0])
	}
}

func TestScheduleRoundTrip(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	idea := h.idea(t, "post me", models.CategoryVideo)
	bank, cal := h.planner.Ideas, h.planner.Calendar

	if err := bank.Schedule(idea.ID, ptr("2026-11-03")); err != nil {
		t.Fatal(err)
	}
	got, _ := bank.Get(idea.ID)
	if got.Scheduled() != "2026-11-03" {
		t.Errorf("scheduled = %q", got.Scheduled())
	}
	if posts := cal.Posts(); len(posts) != 1 || posts[0].ID != idea.ID+"_2026-11-03" || posts[0].Type != models.CategoryVideo {
		t.Fatalf("posts = %+v", posts)
	}
	h.flush(t)

	if err := bank.Schedule(idea.ID, nil); err != nil {
		t.Fatal(err)
	}
	h.flush(t)

	if n := h.store.Calls("ScheduleIdea"); n != 2 {
		t.Errorf("ScheduleIdea calls = %d, want 2", n)
	}
	posts, _ := h.store.ListCalendarPosts(ctx, owner)
	ideas, _ := h.store.ListIdeas(ctx, owner)
	if len(posts) != 0 || ideas[0].ScheduledDate != nil {
		t.Errorf("after unschedule: posts = %v, scheduled = %v", posts, ideas[0].ScheduledDate)
	}
	if len(cal.Posts()) != 0 {
		t.Error("mirror still holds a post")
	}
}

func TestMoveReportsFullAndUpdatesBoth(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bank, cal := h.planner.Ideas, h.planner.Calendar

	a := h.idea(t, "a", models.CategoryFun)
	b := h.idea(t, "b", models.CategoryFun)
	c := h.idea(t, "c", models.CategoryFun)
	for _, id := range []string{a.ID, b.ID} {
		if err := bank.Schedule(id, ptr("2026-11-10")); err != nil {
			t.Fatal(err)
		}
	}
	if err := bank.Schedule(c.ID, ptr("2026-11-11")); err != nil {
		t.Fatal(err)
	}
	if !bank.DayIsFull(c.ID, "2026-11-10") || bank.DayIsFull(a.ID, "2026-11-10") {
		t.Error("DayIsFull mismatch")
	}
	h.flush(t)

	postID := c.ID + "_2026-11-11"
	full, err := cal.Move(postID, "2026-11-10")
	if err != nil {
		t.Fatal(err)
	}
	if !full {
		t.Error("third post onto a two-post day should report full")
	}
	// Dropping onto its own day does not count itself.
	if full, _ := cal.Move(a.ID+"_2026-11-10", "2026-11-10"); !full {
		t.Error("day still holds two other posts")
	}
	h.flush(t)

	posts, _ := h.store.ListCalendarPosts(ctx, owner)
	if len(posts) != 3 {
		t.Fatalf("posts = %d, want 3", len(posts))
	}
	for _, p := range posts {
		if p.Date != "2026-11-10" {
			t.Errorf("post %s on %s", p.ID, p.Date)
		}
	}
	ideas, _ := h.store.ListIdeas(ctx, owner)
	for _, i := range ideas {
		if i.Scheduled() != "2026-11-10" {
			t.Errorf("idea %s scheduled %q", i.ID, i.Scheduled())
		}
	}
	if got, _ := bank.Get(c.ID); got.Scheduled() != "2026-11-10" {
		t.Errorf("mirror scheduled = %q", got.Scheduled())
	}
}

func TestDeleteCascadesAndDropsPendingEdit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bank := h.planner.Ideas

	linked := h.idea(t, "linked", models.CategoryBuilding)
	plain := h.idea(t, "plain", models.CategoryBuilding)
	if err := bank.Schedule(linked.ID, ptr("2026-12-01")); err != nil {
		t.Fatal(err)
	}
	h.flush(t)

	if err := bank.Update(linked.ID, models.IdeaPatch{Body: ptr("edited")}); err != nil {
		t.Fatal(err)
	}
	if err := bank.Delete(linked.ID); err != nil {
		t.Fatal(err)
	}
	if err := bank.Delete(linked.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
	h.flush(t)

	if n := h.store.Calls("UpdateIdea"); n != 0 {
		t.Errorf("UpdateIdea calls = %d, want 0", n)
	}
	posts, _ := h.store.ListCalendarPosts(ctx, owner)
	ideas, _ := h.store.ListIdeas(ctx, owner)
	if len(posts) != 0 || len(ideas) != 1 || ideas[0].ID != plain.ID {
		t.Errorf("after delete: posts = %v, ideas = %v", posts, ideas)
	}
	if len(h.planner.Calendar.Posts()) != 0 {
		t.Error("calendar mirror kept the deleted idea's post")
	}
}

func TestDeleteUnscheduledIdeaLeavesOthers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bank := h.planner.Ideas

	kept := h.idea(t, "kept", models.CategoryBuilding)
	plain := h.idea(t, "plain", models.CategoryLearning)
	if err := bank.Schedule(kept.ID, ptr("2026-12-02")); err != nil {
		t.Fatal(err)
	}
	h.flush(t)

	if err := bank.Delete(plain.ID); err != nil {
		t.Fatal(err)
	}
	h.flush(t)

	ideas, _ := h.store.ListIdeas(ctx, owner)
	if len(ideas) != 1 || ideas[0].ID != kept.ID || ideas[0].Scheduled() != "2026-12-02" {
		t.Errorf("ideas = %+v", ideas)
	}
	posts, _ := h.store.ListCalendarPosts(ctx, owner)
	if len(posts) != 1 || posts[0].IdeaID != kept.ID || posts[0].Date != "2026-12-02" {
		t.Errorf("posts = %+v", posts)
	}
	if n := len(h.planner.Calendar.Posts()); n != 1 {
		t.Errorf("calendar mirror posts = %d, want 1", n)
	}
}

func TestScheduleThenMoveLandsInOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bank, cal := h.planner.Ideas, h.planner.Calendar

	const runs = 20
	for i := 0; i < runs; i++ {
		idea := h.idea(t, "idea", models.CategoryVideo)
		if err := bank.Schedule(idea.ID, ptr("2026-10-20")); err != nil {
			t.Fatal(err)
		}
		if _, err := cal.Move(idea.ID+"_2026-10-20", "2026-10-22"); err != nil {
			t.Fatal(err)
		}
	}
	h.flush(t)

	if n := h.store.Calls("ScheduleIdea"); n != runs {
		t.Errorf("ScheduleIdea calls = %d, want %d", n, runs)
	}
	if n := h.store.Calls("MovePost"); n != runs {
		t.Errorf("MovePost calls = %d, want %d", n, runs)
	}
	h.mu.Lock()
	if len(h.reported) != 0 {
		t.Errorf("reported = %v", h.reported)
	}
	h.mu.Unlock()

	posts, _ := h.store.ListCalendarPosts(ctx, owner)
	if len(posts) != runs {
		t.Fatalf("posts = %d, want %d", len(posts), runs)
	}
	for _, p := range posts {
		if p.Date != "2026-10-22" {
			t.Errorf("post %s on %s", p.ID, p.Date)
		}
	}
	ideas, _ := h.store.ListIdeas(ctx, owner)
	for _, i := range ideas {
		if i.Scheduled() != "2026-10-22" {
			t.Errorf("idea %s scheduled %q", i.ID, i.Scheduled())
		}
	}
}

func TestCalendarToggleRemoveSummary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bank, cal := h.planner.Ideas, h.planner.Calendar

	a := h.idea(t, "a", models.CategoryLearning)
	b := h.idea(t, "b", models.CategoryLearning)
	_ = bank.Schedule(a.ID, ptr("2026-11-02"))
	_ = bank.Schedule(b.ID, ptr("2026-12-24"))
	h.flush(t)

	posted, err := cal.TogglePosted(a.ID + "_2026-11-02")
	if err != nil || !posted {
		t.Fatalf("TogglePosted = %v, %v", posted, err)
	}
	s := cal.Summary(2026, 10)
	if s.Scheduled != 2 || s.Posted != 1 || s.MonthScheduled != 1 || s.MonthPosted != 1 {
		t.Errorf("summary = %+v", s)
	}

	if err := cal.Remove(b.ID + "_2026-12-24"); err != nil {
		t.Fatal(err)
	}
	if got, _ := bank.Get(b.ID); got.ScheduledDate != nil {
		t.Error("idea still scheduled after remove")
	}
	h.flush(t)

	posts, _ := h.store.ListCalendarPosts(ctx, owner)
	if len(posts) != 1 || !posts[0].Posted {
		t.Errorf("posts = %+v", posts)
	}
	if _, err := cal.TogglePosted("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestMonthJoinsIdeasWithPlaceholder(t *testing.T) {
	h := newHarness(t)
	bank, cal := h.planner.Ideas, h.planner.Calendar
	a := h.idea(t, "full body text", models.CategoryDesign)
	_ = bank.Schedule(a.ID, ptr("2026-10-05"))

	cal.board.mu.Lock()
	cal.board.posts = append(cal.board.posts, models.CalendarPost{
		ID: "ghost_2026-10-05", IdeaID: "ghost", Date: "2026-10-05", Label: "orphan label",
	})
	cal.board.mu.Unlock()

	view := cal.Month(2026, 9)
	day := view.Days["2026-10-05"]
	if len(day) != 2 || !view.Full["2026-10-05"] {
		t.Fatalf("day = %+v, full = %v", day, view.Full)
	}
	for _, e := range day {
		switch e.Post.IdeaID {
		case a.ID:
			if e.Body != "full body text" || e.Missing {
				t.Errorf("joined entry = %+v", e)
			}
		case "ghost":
			if e.Body != "orphan label" || !e.Missing || e.ContentType != models.CategoryBuilding {
				t.Errorf("placeholder entry = %+v", e)
			}
		}
	}
}

func TestOnlyDiscreteFailuresReachOnError(t *testing.T) {
	h := newHarness(t)
	bank := h.planner.Ideas
	idea := h.idea(t, "x", models.CategoryFun)

	boom := errors.New("store down")
	h.store.FailWith("UpdateIdea", boom)
	h.store.FailWith("ScheduleIdea", boom)

	_ = bank.Update(idea.ID, models.IdeaPatch{Body: ptr("y")})
	_ = bank.Schedule(idea.ID, ptr("2026-10-20"))
	h.flush(t)

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.reported) != 1 || h.reported[0] != scheduleKey(idea.ID) {
		t.Errorf("reported = %v", h.reported)
	}
	// No rollback: the mirror keeps the optimistic values.
	if got, _ := bank.Get(idea.ID); got.Body != "y" || got.Scheduled() != "2026-10-20" {
		t.Errorf("mirror = %+v", got)
	}
}

func TestLoadFailureLeavesEmptyMirror(t *testing.T) {
	h := newHarness(t)
	h.idea(t, "x", models.CategoryFun)
	h.store.FailWith("ListIdeas", errors.New("offline"))

	if err := h.planner.Ideas.Load(context.Background()); err == nil {
		t.Fatal("expected load error")
	}
	if n := len(h.planner.Ideas.Ideas("")); n != 0 {
		t.Errorf("ideas after failed load = %d", n)
	}

	h.store.FailWith("ListIdeas", nil)
	if err := h.planner.Ideas.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	counts := h.planner.Ideas.Counts()
	if counts[CountAll] != 1 || counts["fun"] != 1 {
		t.Errorf("counts = %v", counts)
	}
	if len(h.planner.Ideas.Ideas(models.CategoryDesign)) != 0 {
		t.Error("filter ignored")
	}
}

func TestTrendingResearchAndSave(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tr := h.planner.Trending

	drafts, err := tr.Research(ctx)
	if err != nil || len(drafts) != 2 {
		t.Fatalf("Research = %v, %v", drafts, err)
	}
	h.gen.mu.Lock()
	if len(h.gen.topics) != 1 || h.gen.topics[0] != "AI" {
		t.Errorf("topics sent = %v", h.gen.topics)
	}
	h.gen.mu.Unlock()

	idea, err := tr.SaveDraft(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if idea.Source != models.SourceTrending || idea.TrendSource != "launch" {
		t.Errorf("idea = %+v", idea)
	}
	_, saved, at := tr.Results()
	if !saved[1] || at.IsZero() {
		t.Errorf("saved = %v, at = %v", saved, at)
	}

	// A new container on the same prefs restores the results.
	restored := newTrending(tr.env, h.gen, nil, tr.prefs, h.planner.Ideas)
	results, _, _ := restored.Results()
	if len(results) != 2 || results[1].TrendSource != "launch" {
		t.Errorf("restored = %+v", results)
	}
}

func TestPendingReportsDirtyKeys(t *testing.T) {
	h := newHarness(t)
	if err := h.planner.Journal.SetText("2026-10-16", "x"); err != nil {
		t.Fatal(err)
	}
	pending := h.planner.Pending()
	if len(pending) != 1 || pending[0] != "journal:2026-10-16:text" {
		t.Errorf("pending = %v", pending)
	}
	h.flush(t)
	if len(h.planner.Pending()) != 0 {
		t.Errorf("pending after flush = %v", h.planner.Pending())
	}
}
