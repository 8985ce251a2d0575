package generate

import (
	"fmt"
	"strings"

	"github.com/starford/postjournal/internal/models"
)

const defaultSystem = "You are a helpful content assistant."

func categoryList() string {
	names := make([]string, len(models.Categories))
	for i, c := range models.Categories {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func journalPrompt(entry string) string {
	return fmt.Sprintf("here is what happened today: %s.\n\n", strings.TrimSpace(entry)) +
		"Generate 2-3 tweet ideas in my voice.\n" +
		"For each idea return JSON with: post_copy, image_idea, content_type.\n" +
		"content_type must be one of: " + categoryList() + ".\n" +
		"Respond with valid JSON array only, no markdown."
}

func trendingPrompt(topics []string) string {
	return fmt.Sprintf("search for what is actually trending RIGHT NOW today in these topics: %s.\n\n", strings.Join(topics, ", ")) +
		"Find real specific things: model drops, company news, viral moments, price moves, tool releases, anything blowing up.\n\n" +
		"Then generate 5-7 tweet ideas reacting to these trends in my voice. Mix these formats:\n" +
		"- meme-style reactive posts about a specific thing that just happened set against my own day\n" +
		"- the chaos contrast: big wild world news vs my quiet grind designing, coding and animating\n" +
		"- hot takes on what the trend means for design, crypto, or building in public\n" +
		"- relatable overwhelm at how fast things are moving in AI/CT/tech\n" +
		"- punchy lowercase lines that feel like texting a friend who's also into this stuff\n\n" +
		"the energy i want: self-aware, a little chaotic, grounded in my actual life, never corporate, always lowercase.\n\n" +
		"For each idea return JSON with: post_copy, image_idea, content_type, trend_source.\n" +
		"trend_source should be the specific thing you found trending (e.g. \"Gemini 3.1 launch\").\n" +
		"content_type must be one of: " + categoryList() + ".\n" +
		"Respond with valid JSON array only, no markdown backticks.\n\n" +
		"only include trends, news and topics from the last 14 days. do not reference anything older than 2 weeks. " +
		"if you cannot find recent content on a topic, skip it and focus on what is actually trending right now."
}

func systemPrompt(tone string) string {
	if strings.TrimSpace(tone) == "" {
		return defaultSystem
	}
	return tone
}
