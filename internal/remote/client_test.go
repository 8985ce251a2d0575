package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/postjournal/internal/api"
	"github.com/starford/postjournal/internal/apperr"
	"github.com/starford/postjournal/internal/auth"
	"github.com/starford/postjournal/internal/models"
	"github.com/starford/postjournal/internal/store"
	"github.com/starford/postjournal/internal/store/storetest"
	"github.com/starford/postjournal/internal/testutil"
)

var secret = []byte("remote-test-secret")

// mintingTokens signs a fresh token for whichever owner the call is for.
type mintingTokens struct{ key []byte }

func (m mintingTokens) Token(ctx context.Context) (string, error) {
	return auth.Mint(m.key, auth.OwnerFrom(ctx), time.Hour, time.Now())
}

type fixedToken string

func (f fixedToken) Token(context.Context) (string, error) { return string(f), nil }

func newServer(t *testing.T, opts api.Options) string {
	t.Helper()
	r := chi.NewRouter()
	r.Mount("/api", api.NewRouter(testutil.TestStore(t), opts))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL + "/api"
}

func TestClientConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		base := newServer(t, api.Options{Verifier: auth.NewVerifier(secret)})
		c := New(base, mintingTokens{secret}, WithLogger(testutil.Logger()))
		t.Cleanup(func() { c.Close() })
		return c
	})
}

func TestDisabledAuthNeedsNoToken(t *testing.T) {
	base := newServer(t, api.Options{DefaultOwner: "local"})
	c := New(base, nil)
	ctx := context.Background()

	if _, err := c.UpsertJournalEntry(ctx, "local", "2026-10-16", models.JournalPatch{EntryText: ptr("hi")}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	e, err := c.GetJournalEntry(ctx, "local", "2026-10-16")
	if err != nil || e.EntryText != "hi" || e.SavedIndices == nil {
		t.Errorf("entry = %+v, %v", e, err)
	}
}

func TestStatusMapping(t *testing.T) {
	base := newServer(t, api.Options{Verifier: auth.NewVerifier(secret)})
	c := New(base, mintingTokens{secret})
	ctx := context.Background()

	if _, err := c.GetProfile(ctx, "alice"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing profile err = %v", err)
	}
	if err := c.RemovePost(ctx, "alice", "nope_2026-01-01"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing post err = %v", err)
	}

	wrong := New(base, mintingTokens{[]byte("not-the-secret")})
	if _, err := wrong.ListIdeas(ctx, "alice"); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("bad signature err = %v", err)
	}
}

func TestTokenMustMatchOwner(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer srv.Close()

	tok, _ := auth.Mint(secret, "bob", time.Hour, time.Now())
	c := New(srv.URL, fixedToken(tok))
	if _, err := c.ListIdeas(context.Background(), "alice"); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("err = %v", err)
	}
	if hits != 0 {
		t.Errorf("server hit %d times", hits)
	}
}

func TestServerErrorKeepsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream down"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).ListIdeas(context.Background(), "alice")
	if err == nil || errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if got := err.Error(); got != "remote: GET /ideas: status 502: upstream down" {
		t.Errorf("err = %q", got)
	}
}

func ptr[T any](v T) *T { return &v }
