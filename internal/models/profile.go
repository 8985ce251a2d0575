package models

import (
	"strings"
	"time"
)

// DefaultToneGuide is applied when onboarding leaves the tone blank.
const DefaultToneGuide = "I am a soft, bubbly graphic designer based in India. I work in crypto. " +
	"I do design, illustrations, motion graphics, and make videos. " +
	"I vibe code apps with original designs. Always write in lowercase, short punchy lines, " +
	"casual tone like texting a friend."

// DefaultTopics seeds trending research for new profiles.
var DefaultTopics = []string{"CT", "AI", "vibecoding", "design", "motion graphics", "video content"}

// Profile holds one owner's generation settings.
type Profile struct {
	OwnerID            string    `json:"id"`
	ToneGuide          string    `json:"tone_guide"`
	Topics             []string  `json:"topics"`
	APIKey             string    `json:"api_key"`
	OnboardingComplete bool      `json:"onboarding_complete"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// ProfilePatch carries settings changes. Nil fields are left alone.
type ProfilePatch struct {
	ToneGuide          *string   `json:"tone_guide,omitempty"`
	Topics             *[]string `json:"topics,omitempty"`
	APIKey             *string   `json:"api_key,omitempty"`
	OnboardingComplete *bool     `json:"onboarding_complete,omitempty"`
}

// Merge returns p with the set fields of next layered on top.
func (p ProfilePatch) Merge(next ProfilePatch) ProfilePatch {
	if next.ToneGuide != nil {
		p.ToneGuide = next.ToneGuide
	}
	if next.Topics != nil {
		p.Topics = next.Topics
	}
	if next.APIKey != nil {
		p.APIKey = next.APIKey
	}
	if next.OnboardingComplete != nil {
		p.OnboardingComplete = next.OnboardingComplete
	}
	return p
}

// Apply copies the set fields of p onto pr.
func (p ProfilePatch) Apply(pr *Profile) {
	if p.ToneGuide != nil {
		pr.ToneGuide = *p.ToneGuide
	}
	if p.Topics != nil {
		pr.Topics = append([]string{}, (*p.Topics)...)
	}
	if p.APIKey != nil {
		pr.APIKey = *p.APIKey
	}
	if p.OnboardingComplete != nil {
		pr.OnboardingComplete = *p.OnboardingComplete
	}
}

// AddTopic commits raw as a topic tag: trimmed, trailing comma removed,
// empty values and duplicates ignored.
func AddTopic(topics []string, raw string) []string {
	t := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), ","))
	if t == "" {
		return topics
	}
	for _, existing := range topics {
		if existing == t {
			return topics
		}
	}
	return append(append([]string{}, topics...), t)
}

// RemoveTopic drops every occurrence of t.
func RemoveTopic(topics []string, t string) []string {
	out := make([]string, 0, len(topics))
	for _, existing := range topics {
		if existing != t {
			out = append(out, existing)
		}
	}
	return out
}
