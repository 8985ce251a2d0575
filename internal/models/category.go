package models

import "strings"

// Category labels the topic of a draft or idea.
type Category string

const (
	CategoryBuilding Category = "building"
	CategoryLearning Category = "learning"
	CategoryDesign   Category = "design"
	CategoryVideo    Category = "video"
	CategoryLife     Category = "life"
	CategoryCTAI     Category = "ct-ai"
	CategoryFun      Category = "fun"
)

// DefaultCategory is used whenever a category is missing or unrecognised.
const DefaultCategory = CategoryBuilding

// Categories lists every category in display order.
var Categories = []Category{
	CategoryBuilding,
	CategoryLearning,
	CategoryDesign,
	CategoryVideo,
	CategoryLife,
	CategoryCTAI,
	CategoryFun,
}

var categoryStyle = map[Category]struct{ label, color string }{
	CategoryBuilding: {"building", "#8B5CF6"},
	CategoryLearning: {"learning", "#6BFFB8"},
	CategoryDesign:   {"design", "#FF6B6B"},
	CategoryVideo:    {"video", "#FFD93D"},
	CategoryLife:     {"life", "#38BDF8"},
	CategoryCTAI:     {"ct · ai", "#FB923C"},
	CategoryFun:      {"fun", "#F472B6"},
}

// ParseCategory normalises s, falling back to DefaultCategory.
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c.Valid() {
		return c
	}
	return DefaultCategory
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	_, ok := categoryStyle[c]
	return ok
}

// Label returns the display label.
func (c Category) Label() string {
	if s, ok := categoryStyle[c]; ok {
		return s.label
	}
	return string(c)
}

// Color returns the accent colour as a hex string.
func (c Category) Color() string {
	if s, ok := categoryStyle[c]; ok {
		return s.color
	}
	return categoryStyle[DefaultCategory].color
}
