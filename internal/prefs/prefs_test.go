package prefs

import (
	"testing"
	"time"

	"github.com/starford/postjournal/internal/models"
)

func TestViewDefaultsAndPersists(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if s.View() != ViewJournal {
		t.Errorf("default view = %q", s.View())
	}
	if err := s.SetView(ViewCalendar); err != nil {
		t.Fatal(err)
	}
	if err := s.SetView("graph"); err == nil {
		t.Error("expected error for unknown view")
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.View() != ViewCalendar {
		t.Errorf("view after reopen = %q", reopened.View())
	}
}

func TestCorruptViewFallsBack(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.d.Write(keyView, []byte("nonsense")); err != nil {
		t.Fatal(err)
	}
	if s.View() != DefaultView {
		t.Errorf("view = %q", s.View())
	}
}

func TestTrendingResults(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Trending(); ok {
		t.Fatal("expected no stored results")
	}
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	in := TrendingResults{
		Drafts:       []models.Draft{{PostCopy: "x", ContentType: models.CategoryFun, TrendSource: "launch"}},
		ResearchedAt: at,
	}
	if err := s.SetTrending(in); err != nil {
		t.Fatal(err)
	}
	got, ok := s.Trending()
	if !ok || len(got.Drafts) != 1 || got.Drafts[0].TrendSource != "launch" || !got.ResearchedAt.Equal(at) {
		t.Errorf("trending = %+v", got)
	}
}
