// Package checksum derives content digests and the HTTP entity tags built
// from them.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ETag returns a strong entity tag for a response body.
func ETag(body []byte) string {
	return `"` + Sum(body)[:32] + `"`
}

// Matches reports whether an If-None-Match header value lists etag or "*".
// Weak tags compare by their opaque part.
func Matches(ifNoneMatch, etag string) bool {
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}
