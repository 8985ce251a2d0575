package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/postjournal/internal/auth"
	"github.com/starford/postjournal/internal/models"
	"github.com/starford/postjournal/internal/sse"
	"github.com/starford/postjournal/internal/testutil"
)

const defaultOwner = "local"

var secret = []byte("test-secret")

// testEnv builds a router over a temp SQLite store. An empty secret means
// disabled mode, where every request acts as defaultOwner.
func testEnv(t *testing.T, jwtSecret []byte) http.Handler {
	t.Helper()
	return testEnvWithEvents(t, jwtSecret, nil)
}

func testEnvWithEvents(t *testing.T, jwtSecret []byte, events *sse.Broker) http.Handler {
	t.Helper()
	opts := Options{DefaultOwner: defaultOwner, Events: events, CORSOrigins: []string{"http://localhost:5173"}}
	if len(jwtSecret) > 0 {
		opts.Verifier = auth.NewVerifier(jwtSecret)
	}
	return NewRouter(testutil.TestStore(t), opts)
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func mint(t *testing.T, owner string) string {
	t.Helper()
	tok, err := auth.Mint(secret, owner, time.Hour, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestJournalUpsertAndGet(t *testing.T) {
	router := testEnv(t, nil)

	w := do(t, router, http.MethodGet, "/journal/2026-10-16", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing entry = %d, want 404", w.Code)
	}

	w = do(t, router, http.MethodPut, "/journal/2026-10-16", "", map[string]string{"entry_text": "shipped it"})
	if w.Code != http.StatusOK {
		t.Fatalf("upsert = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodPut, "/journal/2026-10-16", "", map[string]any{
		"generated_ideas": []models.Draft{{PostCopy: "draft", ContentType: models.CategoryFun}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("upsert drafts = %d", w.Code)
	}

	w = do(t, router, http.MethodGet, "/journal/2026-10-16", "", nil)
	e := decode[models.JournalEntry](t, w)
	if e.EntryText != "shipped it" || len(e.GeneratedIdeas) != 1 || e.OwnerID != defaultOwner {
		t.Errorf("entry = %+v", e)
	}

	w = do(t, router, http.MethodGet, "/journal", "", nil)
	if list := decode[JournalListResponse](t, w); len(list.Entries) != 1 {
		t.Errorf("entries = %d, want 1", len(list.Entries))
	}
}

func TestJournalRejectsBadDate(t *testing.T) {
	router := testEnv(t, nil)
	w := do(t, router, http.MethodPut, "/journal/16-10-2026", "", map[string]string{"entry_text": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad date = %d, want 400", w.Code)
	}
}

func TestInvalidJSON(t *testing.T) {
	router := testEnv(t, nil)
	w := do(t, router, http.MethodPost, "/ideas", "", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid json = %d, want 400", w.Code)
	}
}

func TestCreateIdeaRequiresBody(t *testing.T) {
	router := testEnv(t, nil)
	w := do(t, router, http.MethodPost, "/ideas", "", map[string]string{"body": "  "})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty body = %d, want 400", w.Code)
	}
}

func TestIdeaLifecycle(t *testing.T) {
	router := testEnv(t, nil)

	w := do(t, router, http.MethodPost, "/ideas", "", map[string]string{"body": "hello world", "content_type": "VIDEO"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}
	idea := decode[models.Idea](t, w)
	if idea.ID == "" || idea.ContentType != models.CategoryVideo || idea.Status != models.StatusDraft {
		t.Errorf("created = %+v", idea)
	}

	w = do(t, router, http.MethodPatch, "/ideas/"+idea.ID, "", map[string]string{"body": "edited"})
	if got := decode[models.Idea](t, w); w.Code != http.StatusOK || got.Body != "edited" {
		t.Fatalf("patch = %d %+v", w.Code, got)
	}

	w = do(t, router, http.MethodPost, "/ideas/"+idea.ID+"/schedule", "", map[string]string{"date": "2026-11-01"})
	sched := decode[ScheduleResponse](t, w)
	if w.Code != http.StatusOK || sched.Post == nil || sched.Post.ID != idea.ID+"_2026-11-01" {
		t.Fatalf("schedule = %d %+v", w.Code, sched)
	}

	w = do(t, router, http.MethodPatch, "/calendar/"+sched.Post.ID, "", map[string]any{"date": "2026-11-05", "posted": true})
	moved := decode[models.CalendarPost](t, w)
	if w.Code != http.StatusOK || moved.Date != "2026-11-05" || !moved.Posted {
		t.Fatalf("calendar patch = %d %+v", w.Code, moved)
	}

	w = do(t, router, http.MethodGet, "/ideas", "", nil)
	list := decode[IdeaListResponse](t, w)
	if len(list.Ideas) != 1 || list.Ideas[0].Scheduled() != "2026-11-05" {
		t.Errorf("ideas = %+v", list.Ideas)
	}

	w = do(t, router, http.MethodDelete, "/ideas/"+idea.ID, "", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d, want 204", w.Code)
	}
	w = do(t, router, http.MethodGet, "/calendar", "", nil)
	if posts := decode[CalendarListResponse](t, w); len(posts.Posts) != 0 {
		t.Errorf("posts after delete = %+v", posts.Posts)
	}
	w = do(t, router, http.MethodDelete, "/ideas/"+idea.ID, "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestScheduleNullUnschedules(t *testing.T) {
	router := testEnv(t, nil)
	idea := decode[models.Idea](t, do(t, router, http.MethodPost, "/ideas", "", map[string]string{"body": "x"}))
	do(t, router, http.MethodPost, "/ideas/"+idea.ID+"/schedule", "", map[string]string{"date": "2026-11-01"})

	w := do(t, router, http.MethodPost, "/ideas/"+idea.ID+"/schedule", "", `{"date":null}`)
	if resp := decode[ScheduleResponse](t, w); w.Code != http.StatusOK || resp.Post != nil {
		t.Fatalf("unschedule = %d %+v", w.Code, resp)
	}
	w = do(t, router, http.MethodGet, "/calendar", "", nil)
	if posts := decode[CalendarListResponse](t, w); len(posts.Posts) != 0 {
		t.Errorf("posts = %+v", posts.Posts)
	}
}

func TestCalendarPatchRequiresField(t *testing.T) {
	router := testEnv(t, nil)
	w := do(t, router, http.MethodPatch, "/calendar/x_2026-01-01", "", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty patch = %d, want 400", w.Code)
	}
	w = do(t, router, http.MethodPatch, "/calendar/x_2026-01-01", "", map[string]any{"posted": true})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing post = %d, want 404", w.Code)
	}
}

func TestRemoveCalendarPostKeepsIdea(t *testing.T) {
	router := testEnv(t, nil)
	idea := decode[models.Idea](t, do(t, router, http.MethodPost, "/ideas", "", map[string]string{"body": "keep me"}))
	do(t, router, http.MethodPost, "/ideas/"+idea.ID+"/schedule", "", map[string]string{"date": "2026-12-01"})

	w := do(t, router, http.MethodDelete, "/calendar/"+idea.ID+"_2026-12-01", "", nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("remove = %d", w.Code)
	}
	list := decode[IdeaListResponse](t, do(t, router, http.MethodGet, "/ideas", "", nil))
	if len(list.Ideas) != 1 || list.Ideas[0].ScheduledDate != nil {
		t.Errorf("ideas = %+v", list.Ideas)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	router := testEnv(t, nil)

	if w := do(t, router, http.MethodGet, "/profile", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing profile = %d, want 404", w.Code)
	}
	w := do(t, router, http.MethodPut, "/profile", "", map[string]any{"api_key": "sk", "topics": []string{"AI"}})
	if w.Code != http.StatusOK {
		t.Fatalf("put = %d, body = %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodPut, "/profile", "", map[string]any{"onboarding_complete": true})
	p := decode[models.Profile](t, w)
	if p.APIKey != "sk" || len(p.Topics) != 1 || !p.OnboardingComplete {
		t.Errorf("profile = %+v", p)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router := testEnv(t, secret)
	w := do(t, router, http.MethodPost, "/ideas", mint(t, "alice"), map[string]string{"body": "mine"})
	if w.Code != http.StatusCreated {
		t.Fatalf("authed create = %d, want 201", w.Code)
	}
	if idea := decode[models.Idea](t, w); idea.OwnerID != "alice" {
		t.Errorf("owner = %q, want alice", idea.OwnerID)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router := testEnv(t, secret)
	if w := do(t, router, http.MethodGet, "/ideas", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongKey(t *testing.T) {
	router := testEnv(t, secret)
	tok, _ := auth.Mint([]byte("other"), "alice", time.Hour, time.Now())
	if w := do(t, router, http.MethodGet, "/ideas", tok, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong key = %d, want 401", w.Code)
	}
}

func TestOwnersAreIsolated(t *testing.T) {
	router := testEnv(t, secret)
	alice, bob := mint(t, "alice"), mint(t, "bob")

	idea := decode[models.Idea](t, do(t, router, http.MethodPost, "/ideas", alice, map[string]string{"body": "private"}))

	list := decode[IdeaListResponse](t, do(t, router, http.MethodGet, "/ideas", bob, nil))
	if len(list.Ideas) != 0 {
		t.Errorf("bob sees %d ideas", len(list.Ideas))
	}
	if w := do(t, router, http.MethodDelete, "/ideas/"+idea.ID, bob, nil); w.Code != http.StatusNotFound {
		t.Errorf("cross-owner delete = %d, want 404", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := testEnv(t, secret)

	req := httptest.NewRequest(http.MethodOptions, "/ideas", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/ideas", nil)
	req.Header.Set("Origin", "http://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin allowed: %q", got)
	}
}

func TestWritesPublishEvents(t *testing.T) {
	broker := sse.NewBroker(time.Hour)
	defer broker.Close()
	router := testEnvWithEvents(t, nil, broker)
	ch := broker.Subscribe(defaultOwner)

	w := do(t, router, http.MethodPost, "/ideas", "", map[string]string{"body": "news"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}

	var got []string
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case msg := <-ch:
			got = append(got, string(msg))
		case <-timeout:
			t.Fatalf("events = %v", got)
		}
	}
	if !strings.Contains(got[0], "event: idea.created") || !strings.Contains(got[1], "event: calendar.changed") {
		t.Errorf("events = %v", got)
	}
}

func TestSearch(t *testing.T) {
	router := testEnv(t, nil)

	do(t, router, http.MethodPut, "/journal/2026-10-15", "", map[string]string{"entry_text": "Launched the Beta today"})
	do(t, router, http.MethodPost, "/ideas", "", map[string]string{"body": "beta lessons thread"})
	do(t, router, http.MethodPost, "/ideas", "", map[string]string{"body": "unrelated"})

	w := do(t, router, http.MethodGet, "/search?q=beta", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	hits := decode[SearchResponse](t, w).Hits
	if len(hits) != 2 || hits[0].Kind != models.HitJournal || hits[0].ID != "2026-10-15" || hits[1].Kind != models.HitIdea {
		t.Errorf("hits = %+v", hits)
	}

	if w := do(t, router, http.MethodGet, "/search?q=beta&limit=1", "", nil); len(decode[SearchResponse](t, w).Hits) != 1 {
		t.Errorf("limit ignored: %s", w.Body.String())
	}
	if w := do(t, router, http.MethodGet, "/search?q=+", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("blank query = %d, want 400", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/search?q=beta&limit=x", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit = %d, want 400", w.Code)
	}
}

func TestReadsCarryETag(t *testing.T) {
	router := testEnv(t, nil)
	do(t, router, http.MethodPost, "/ideas", "", map[string]string{"body": "cache me"})

	w := do(t, router, http.MethodGet, "/ideas", "", nil)
	tag := w.Header().Get("ETag")
	if w.Code != http.StatusOK || tag == "" {
		t.Fatalf("first read = %d, etag %q", w.Code, tag)
	}

	req := httptest.NewRequest(http.MethodGet, "/ideas", nil)
	req.Header.Set("If-None-Match", tag)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified || rec.Body.Len() != 0 {
		t.Errorf("conditional read = %d, body %q", rec.Code, rec.Body.String())
	}

	do(t, router, http.MethodPost, "/ideas", "", map[string]string{"body": "changed"})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("ETag") == tag {
		t.Errorf("read after write = %d, etag unchanged", rec.Code)
	}
}
