// Package sanitize strips markup from user-provided text before storage.
package sanitize

import (
	"regexp"
	"strings"
)

var htmlTagRegex = regexp.MustCompile(`<[^>]*>`)

// htmlEntities maps the common encoded forms back to their characters so a
// second strip pass catches entity-encoded tags.
var htmlEntities = [][2]string{
	{"&lt;", "<"},
	{"&gt;", ">"},
	{"&amp;", "&"},
	{"&quot;", "\""},
	{"&#39;", "'"},
}

// StripHTML removes HTML tags from a string, making it safe for text-only
// display. Inbound webhook payloads are the main source of markup here.
func StripHTML(s string) string {
	result := htmlTagRegex.ReplaceAllString(s, "")
	for _, e := range htmlEntities {
		result = strings.ReplaceAll(result, e[0], e[1])
	}
	result = htmlTagRegex.ReplaceAllString(result, "")
	return strings.TrimSpace(result)
}

// Text sanitizes a user-provided text field (names, notes, free-form
// submission values) for storage.
func Text(s string) string {
	return StripHTML(s)
}

// TextPtr applies Text to optional fields.
func TextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	result := Text(*s)
	return &result
}
