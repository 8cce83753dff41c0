package ai

import (
	"regexp"
	"strings"
)

// Extraction is intentionally asymmetric: generation falls back to the raw
// content when no fenced block is found (the prompt forbids fences, so bare
// code is the expected case), while improvement requires the IMPROVED_CODE
// marker and returns an empty string without it.

var (
	improvedCodeRe = regexp.MustCompile("(?s)IMPROVED_CODE:\\s*```[a-z]*[ \\t]*\n(.*?)\n```")
	changesRe      = regexp.MustCompile(`(?s)CHANGES:\s*\n(.*?)(?:\n\n|\z)`)
)

// extractCode pulls the first fenced code block out of a generation
// response, or returns the trimmed content when there is none.
func extractCode(content, typ string) string {
	fenceRe := regexp.MustCompile("(?s)```(?:" + regexp.QuoteMeta(typ) + ")?[ \\t]*\n(.*?)\n```")
	if m := fenceRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(content)
}

// extractImprovedCode pulls the fenced block after the IMPROVED_CODE
// marker. An empty result means the model ignored the response format.
func extractImprovedCode(content string) string {
	if m := improvedCodeRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// extractChanges pulls the prose after the CHANGES marker, up to the first
// blank line or the end of the content.
func extractChanges(content string) string {
	if m := changesRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
