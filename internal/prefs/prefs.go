// Package prefs keeps device-local UI preferences on disk. Nothing here is
// business data; a missing or corrupt value falls back to its default.
package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/peterbourgon/diskv/v3"

	"github.com/starford/postjournal/internal/models"
)

// View is a top-level screen of the app.
type View string

const (
	ViewJournal  View = "journal"
	ViewIdeas    View = "ideas"
	ViewCalendar View = "calendar"
	ViewTrending View = "trending"
	ViewSettings View = "settings"
)

// DefaultView is shown when nothing was stored yet.
const DefaultView = ViewJournal

// ParseView validates s.
func ParseView(s string) (View, bool) {
	switch v := View(s); v {
	case ViewJournal, ViewIdeas, ViewCalendar, ViewTrending, ViewSettings:
		return v, true
	}
	return "", false
}

const (
	keyView     = "view"
	keyTrending = "trending"
)

// TrendingResults is the last research run.
type TrendingResults struct {
	Drafts       []models.Draft `json:"drafts"`
	ResearchedAt time.Time      `json:"researched_at"`
}

// Store is a diskv-backed preference store.
type Store struct {
	d *diskv.Diskv
}

// Open opens (creating if needed) the preference directory. A leading ~ is
// expanded to the home directory.
func Open(dir string) (*Store, error) {
	path, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("prefs: expand %s: %w", dir, err)
	}
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("prefs: create %s: %w", path, err)
	}
	return &Store{d: diskv.New(diskv.Options{
		BasePath:     path,
		CacheSizeMax: 256 * 1024,
		FilePerm:     0o600,
		PathPerm:     0o700,
	})}, nil
}

// View returns the last selected view.
func (s *Store) View() View {
	raw, err := s.d.Read(keyView)
	if err != nil {
		return DefaultView
	}
	if v, ok := ParseView(string(raw)); ok {
		return v
	}
	return DefaultView
}

// SetView stores v.
func (s *Store) SetView(v View) error {
	if _, ok := ParseView(string(v)); !ok {
		return fmt.Errorf("prefs: unknown view %q", v)
	}
	return s.d.Write(keyView, []byte(v))
}

// Trending returns the last research results, if any.
func (s *Store) Trending() (TrendingResults, bool) {
	raw, err := s.d.Read(keyTrending)
	if err != nil {
		return TrendingResults{}, false
	}
	var t TrendingResults
	if err := json.Unmarshal(raw, &t); err != nil {
		return TrendingResults{}, false
	}
	return t, true
}

// SetTrending replaces the stored research results.
func (s *Store) SetTrending(t TrendingResults) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("prefs: encode trending: %w", err)
	}
	return s.d.Write(keyTrending, raw)
}
