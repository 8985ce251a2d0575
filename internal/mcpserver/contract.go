package mcpserver

import (
	"fmt"
	"strings"

	"github.com/starford/postjournal/internal/models"
)

const contractURI = "postjournal://draft-format"

// DraftContract describes the draft shape that create_idea accepts and that
// the generation tools return.
var DraftContract = buildContract()

func buildContract() string {
	var b strings.Builder
	b.WriteString(`# Postjournal Draft Format

A draft is one post ready to publish:

` + "```" + `json
{
  "post_copy": "the full post text",
  "image_idea": "what to show with it",
  "content_type": "building",
  "trend_source": "only for trending drafts"
}
` + "```" + `

## Rules

1. **post_copy is required.** Blank drafts are dropped.
2. **content_type** is one of the categories below. Anything else is stored as
   ` + "`" + string(models.DefaultCategory) + "`" + `.
3. Saved drafts become ideas with status "` + models.StatusDraft + `". The title is the
   first ` + fmt.Sprint(models.TitleLength) + ` characters of the body.
4. A calendar day holding two or more posts is full. Scheduling still succeeds;
   the tools report ` + "`" + `day_full: true` + "`" + ` as a warning.

## Categories

| key | label | color |
|---|---|---|
`)
	for _, c := range models.Categories {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", c, c.Label(), c.Color())
	}
	return b.String()
}
