package generate

import (
	"encoding/json"
	"strings"

	"github.com/starford/postjournal/internal/models"
)

// ExtractDrafts pulls drafts out of free model text. The first well-formed JSON
// array holding at least one usable draft wins; prose, code fences and empty
// arrays around it are ignored. When the text holds no such array, a lone JSON
// object is accepted as a one-draft list.
func ExtractDrafts(text string) ([]models.Draft, error) {
	if drafts, ok := firstArray(text); ok {
		return drafts, nil
	}
	if d, ok := firstObject(text); ok {
		return finish([]models.Draft{d})
	}
	return nil, ErrMalformedResponse
}

func firstArray(text string) ([]models.Draft, bool) {
	for i := strings.IndexByte(text, '['); i >= 0; {
		var drafts []models.Draft
		if decodeAt(text[i:], &drafts) {
			if out, err := finish(drafts); err == nil {
				return out, true
			}
		}
		next := strings.IndexByte(text[i+1:], '[')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return nil, false
}

func firstObject(text string) (models.Draft, bool) {
	for i := strings.IndexByte(text, '{'); i >= 0; {
		var d models.Draft
		if decodeAt(text[i:], &d) {
			return d, true
		}
		next := strings.IndexByte(text[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return models.Draft{}, false
}

// decodeAt decodes the JSON value that starts s, ignoring whatever follows it.
func decodeAt(s string, v any) bool {
	return json.NewDecoder(strings.NewReader(s)).Decode(v) == nil
}

func finish(in []models.Draft) ([]models.Draft, error) {
	out := make([]models.Draft, 0, len(in))
	for _, d := range in {
		d.PostCopy = strings.TrimSpace(d.PostCopy)
		if d.PostCopy == "" {
			continue
		}
		d.ContentType = models.ParseCategory(string(d.ContentType))
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, ErrMalformedResponse
	}
	return out, nil
}
