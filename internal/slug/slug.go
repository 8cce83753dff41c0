// Package slug derives URL- and shortcode-safe identifiers from titles.
//
// The algorithm is shared by every place a slug is auto-generated (snippet
// creation, import conversion) so that a title always maps to the same slug:
// lowercase, trim, strip everything that isn't a word character / space /
// hyphen, collapse runs of whitespace/underscores/hyphens to a single
// hyphen, then trim leading and trailing hyphens.
package slug

import (
	"regexp"
	"strings"
)

var (
	nonWord  = regexp.MustCompile(`[^\w\s-]`)
	collapse = regexp.MustCompile(`[\s_-]+`)
	trimEdge = regexp.MustCompile(`^-+|-+$`)
)

// Make converts an arbitrary title into a slug. The result is empty only
// when the input contains no word characters at all; callers decide what
// to do with an empty slug (usually: reject the title).
func Make(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = nonWord.ReplaceAllString(s, "")
	s = collapse.ReplaceAllString(s, "-")
	s = trimEdge.ReplaceAllString(s, "")
	return s
}
