package fetch

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// truncationMarker matches the "[+1234 chars]" suffix NewsAPI appends to
// clipped content.
var truncationMarker = regexp.MustCompile(`\s*\[\+\d+ chars\]\s*$`)

var strictPolicy = bluemonday.StrictPolicy()

// cleanContent strips markup and provider artifacts from a snippet and
// collapses whitespace.
func cleanContent(s string) string {
	if s == "" {
		return ""
	}
	s = truncationMarker.ReplaceAllString(s, "")
	s = html.UnescapeString(strictPolicy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}
