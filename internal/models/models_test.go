package models

import (
	"strings"
	"testing"
	"time"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"fun", CategoryFun},
		{" CT-AI ", CategoryCTAI},
		{"", CategoryBuilding},
		{"crypto", CategoryBuilding},
	}
	for _, tt := range tests {
		if got := ParseCategory(tt.in); got != tt.want {
			t.Errorf("ParseCategory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if CategoryCTAI.Label() != "ct · ai" {
		t.Errorf("label = %q", CategoryCTAI.Label())
	}
}

func TestNewIdeaFromDraft(t *testing.T) {
	long := strings.Repeat("é", 80)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	idea := NewIdea(Draft{PostCopy: long, ImageIdea: "img", ContentType: "nope"}, SourceJournal, "2026-03-01", now)

	if idea.ID == "" {
		t.Fatal("expected generated id")
	}
	if n := len([]rune(idea.Title)); n != TitleLength {
		t.Errorf("title runes = %d, want %d", n, TitleLength)
	}
	if idea.ContentType != CategoryBuilding {
		t.Errorf("content_type = %q, want fallback", idea.ContentType)
	}
	if idea.Status != StatusDraft || idea.StatusColor != StatusDraftColor {
		t.Errorf("status = %q/%q", idea.Status, idea.StatusColor)
	}
	if idea.ScheduledDate != nil {
		t.Error("new idea should be unscheduled")
	}
}

func TestIdeaPatchMergeKeepsEarlierFields(t *testing.T) {
	body := "new body"
	img := "new image"
	p := IdeaPatch{Body: &body}.Merge(IdeaPatch{ImageIdea: &img})

	var idea Idea
	p.Apply(&idea)
	if idea.Body != body || idea.ImageIdea != img {
		t.Errorf("merged patch lost a field: %+v", idea)
	}
	if idea.Title != body {
		t.Errorf("title = %q, want it to follow body", idea.Title)
	}
}

func TestTopics(t *testing.T) {
	topics := AddTopic(nil, " design, ")
	topics = AddTopic(topics, "design")
	topics = AddTopic(topics, "   ")
	topics = AddTopic(topics, "AI")
	if strings.Join(topics, "|") != "design|AI" {
		t.Fatalf("topics = %v", topics)
	}
	topics = RemoveTopic(topics, "design")
	if len(topics) != 1 || topics[0] != "AI" {
		t.Errorf("after remove = %v", topics)
	}
}

func TestNewCalendarPost(t *testing.T) {
	idea := Idea{ID: "abc", OwnerID: "o", Body: "hello", ContentType: CategoryVideo}
	post := NewCalendarPost(idea, "2026-01-31")
	if post.ID != "abc_2026-01-31" {
		t.Errorf("id = %q", post.ID)
	}
	if post.Type != CategoryVideo || post.Label != "hello" || post.Posted {
		t.Errorf("post = %+v", post)
	}
}

func TestExcerpt(t *testing.T) {
	long := strings.Repeat("a ", 100) + "needle in the   haystack " + strings.Repeat("b ", 100)

	got := Excerpt(long, "NEEDLE", 40)
	if !strings.Contains(got, "needle in the haystack") {
		t.Errorf("excerpt misses the match: %q", got)
	}
	if !strings.HasPrefix(got, "...") || !strings.HasSuffix(got, "...") {
		t.Errorf("cut ends not marked: %q", got)
	}
	if n := len([]rune(strings.Trim(got, "."))); n > 40 {
		t.Errorf("excerpt is %d runes", n)
	}

	if got := Excerpt("short\ntext", "x", 40); got != "short text" {
		t.Errorf("short text = %q", got)
	}
	if got := Excerpt(long, "absent", 10); got != "a a a a a ..." {
		t.Errorf("no match = %q", got)
	}
}
