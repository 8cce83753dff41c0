// Package conditions decides whether an auto-insert snippet should execute
// for a given request context.
//
// A condition set restricts execution on up to three axes: page type, login
// status and device type. The evaluation rule is AND across axes, where an
// absent or empty axis is vacuously satisfied. A snippet with no stored
// conditions therefore runs everywhere.
//
// Shortcode-mode snippets never pass through this package. They execute
// only on explicit invocation by slug, whatever their stored conditions say.
package conditions

import (
	"encoding/json"
	"strings"
)

// Login statuses. "any" (or an empty value) matches every visitor.
const (
	LoginAny       = "any"
	LoginLoggedIn  = "logged_in"
	LoginLoggedOut = "logged_out"
)

// Device types. "any" matches every classified device.
const (
	DeviceAny     = "any"
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
)

// Set is the stored rule for one snippet. All fields are optional; a zero
// Set matches every request.
type Set struct {
	PageType    []string `json:"page_type,omitempty"`
	LoginStatus string   `json:"login_status,omitempty"`
	DeviceType  []string `json:"device_type,omitempty"`
}

// RequestContext describes the request being evaluated against a Set.
type RequestContext struct {
	PageType string
	LoggedIn bool
	Device   string
}

// Parse decodes a stored conditions value.
//
// Decoding is deliberately lenient: an empty string, literal "null" or
// malformed JSON all yield the zero Set (match everything). A corrupted
// row must not make the evaluator fail or silently disable a snippet the
// admin believes is running everywhere.
func Parse(raw string) Set {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return Set{}
	}
	var s Set
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Set{}
	}
	return s
}

// Matches reports whether ctx satisfies every present axis of the set.
func (s Set) Matches(ctx RequestContext) bool {
	if !matchList(s.PageType, ctx.PageType) {
		return false
	}
	if !matchLogin(s.LoginStatus, ctx.LoggedIn) {
		return false
	}
	return matchList(s.DeviceType, ctx.Device)
}

// IsZero reports whether the set carries no restriction at all.
func (s Set) IsZero() bool {
	return len(s.PageType) == 0 && s.LoginStatus == "" && len(s.DeviceType) == 0
}

func matchList(allowed []string, value string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == "any" || a == value {
			return true
		}
	}
	return false
}

func matchLogin(status string, loggedIn bool) bool {
	switch status {
	case "", LoginAny:
		return true
	case LoginLoggedIn:
		return loggedIn
	case LoginLoggedOut:
		return !loggedIn
	}
	// Unknown stored value: no restriction.
	return true
}

// frontendPageTypes is the canonical expansion of the "frontend" preset.
var frontendPageTypes = []string{"home", "front_page", "single", "page", "archive", "search"}

// ExpandPreset turns an authoring-time shortcut into a canonical Set.
// The evaluator itself only ever sees expanded sets; presets are sugar
// applied when a snippet is saved or imported.
//
//	everywhere → zero Set (no restriction)
//	frontend   → the public page types
//	admin      → page_type ["admin"]
//
// Unknown presets expand to "everywhere" rather than failing.
func ExpandPreset(preset string) Set {
	switch preset {
	case "frontend", "front-end":
		return Set{PageType: append([]string(nil), frontendPageTypes...)}
	case "admin":
		return Set{PageType: []string{"admin"}}
	default:
		return Set{}
	}
}

// Option is a value/label pair for populating UI selectors.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// PageTypes enumerates the page-type tags a condition may reference.
func PageTypes() []Option {
	return []Option{
		{"home", "Blog Home"},
		{"front_page", "Front Page"},
		{"single", "Single Post"},
		{"page", "Page"},
		{"archive", "Archive"},
		{"search", "Search Results"},
		{"category", "Category Archive"},
		{"tag", "Tag Archive"},
		{"404", "404 Not Found"},
		{"admin", "Admin Area"},
	}
}

// DeviceTypes enumerates the device classifications.
func DeviceTypes() []Option {
	return []Option{
		{DeviceAny, "Any Device"},
		{DeviceDesktop, "Desktop"},
		{DeviceMobile, "Mobile"},
	}
}

// LoginStatuses enumerates the visitor authentication states.
func LoginStatuses() []Option {
	return []Option{
		{LoginAny, "Any Visitor"},
		{LoginLoggedIn, "Logged In"},
		{LoginLoggedOut, "Logged Out"},
	}
}

// UserRoles enumerates the role tags exposed for UI population.
func UserRoles() []Option {
	return []Option{
		{"administrator", "Administrator"},
		{"editor", "Editor"},
		{"author", "Author"},
		{"contributor", "Contributor"},
		{"subscriber", "Subscriber"},
	}
}
