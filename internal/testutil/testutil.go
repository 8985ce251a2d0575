// Package testutil provides shared test helpers for databases, loggers and
// store call counting.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/starford/postjournal/internal/models"
	"github.com/starford/postjournal/internal/store"
	"github.com/starford/postjournal/internal/store/sqlite"
)

// TestStore creates a temporary SQLite store that is automatically cleaned up.
func TestStore(t *testing.T) *sqlite.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "postjournal-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := sqlite.Open(sqlite.DriverSQLite, dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Logger returns a logger that discards everything below error.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// CountingStore wraps a store.Store and counts write calls by method name.
type CountingStore struct {
	store.Store

	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
}

// NewCountingStore wraps s.
func NewCountingStore(s store.Store) *CountingStore {
	return &CountingStore{Store: s, calls: make(map[string]int), fail: make(map[string]error)}
}

// Calls returns how often method was called.
func (c *CountingStore) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// FailWith makes method return err until cleared with a nil err.
func (c *CountingStore) FailWith(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.fail, method)
		return
	}
	c.fail[method] = err
}

func (c *CountingStore) hit(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method]++
	return c.fail[method]
}

func (c *CountingStore) ListIdeas(ctx context.Context, owner string) ([]models.Idea, error) {
	if err := c.hit("ListIdeas"); err != nil {
		return nil, err
	}
	return c.Store.ListIdeas(ctx, owner)
}

func (c *CountingStore) UpsertJournalEntry(ctx context.Context, owner, date string, patch models.JournalPatch) (*models.JournalEntry, error) {
	if err := c.hit("UpsertJournalEntry"); err != nil {
		return nil, err
	}
	return c.Store.UpsertJournalEntry(ctx, owner, date, patch)
}

func (c *CountingStore) InsertIdea(ctx context.Context, owner string, idea models.Idea) (*models.Idea, error) {
	if err := c.hit("InsertIdea"); err != nil {
		return nil, err
	}
	return c.Store.InsertIdea(ctx, owner, idea)
}

func (c *CountingStore) UpdateIdea(ctx context.Context, owner, id string, patch models.IdeaPatch) (*models.Idea, error) {
	if err := c.hit("UpdateIdea"); err != nil {
		return nil, err
	}
	return c.Store.UpdateIdea(ctx, owner, id, patch)
}

func (c *CountingStore) DeleteIdea(ctx context.Context, owner, id string) error {
	if err := c.hit("DeleteIdea"); err != nil {
		return err
	}
	return c.Store.DeleteIdea(ctx, owner, id)
}

func (c *CountingStore) UpdateCalendarPost(ctx context.Context, owner, id string, patch models.CalendarPatch) (*models.CalendarPost, error) {
	if err := c.hit("UpdateCalendarPost"); err != nil {
		return nil, err
	}
	return c.Store.UpdateCalendarPost(ctx, owner, id, patch)
}

func (c *CountingStore) ScheduleIdea(ctx context.Context, owner, ideaID string, date *string) (*models.CalendarPost, error) {
	if err := c.hit("ScheduleIdea"); err != nil {
		return nil, err
	}
	return c.Store.ScheduleIdea(ctx, owner, ideaID, date)
}

func (c *CountingStore) MovePost(ctx context.Context, owner, postID, date string) (*models.CalendarPost, error) {
	if err := c.hit("MovePost"); err != nil {
		return nil, err
	}
	return c.Store.MovePost(ctx, owner, postID, date)
}

func (c *CountingStore) RemovePost(ctx context.Context, owner, postID string) error {
	if err := c.hit("RemovePost"); err != nil {
		return err
	}
	return c.Store.RemovePost(ctx, owner, postID)
}
