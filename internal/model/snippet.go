// Package model defines the data structures shared by every layer.
package model

import (
	"encoding/json"
	"time"
)

// Snippet types. The set is fixed; anything else is rejected at validation.
const (
	TypePHP  = "php"
	TypeJS   = "js"
	TypeCSS  = "css"
	TypeHTML = "html"
)

// Execution modes. AutoInsert snippets run wherever their conditions match;
// shortcode snippets run only when invoked explicitly by slug.
const (
	ModeAutoInsert = "auto_insert"
	ModeShortcode  = "shortcode"
)

// ValidType reports whether t is one of the four snippet types.
func ValidType(t string) bool {
	switch t {
	case TypePHP, TypeJS, TypeCSS, TypeHTML:
		return true
	}
	return false
}

// ValidMode reports whether m is a known execution mode.
func ValidMode(m string) bool {
	return m == ModeAutoInsert || m == ModeShortcode
}

// Snippet represents a stored unit of code plus the metadata controlling
// when and how it executes.
//
// Conditions holds the raw JSON rule set exactly as stored; an empty string
// means "run everywhere". It is decoded lazily (and leniently) by the
// conditions package so that a malformed stored value degrades to
// "no restriction" instead of breaking every listing that touches the row.
type Snippet struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Slug       string    `json:"slug"`
	Type       string    `json:"type"`
	Code       string    `json:"code"`
	Active     bool      `json:"active"`
	Mode       string    `json:"mode"`
	Conditions string    `json:"-"`
	AuthorID   string    `json:"author_id"`
	Deleted    bool      `json:"deleted"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MarshalJSON inlines the stored rule set as a JSON object under
// "conditions". Empty or malformed stored values are omitted rather than
// emitted, matching the evaluator's treatment of them as "no restriction".
func (s Snippet) MarshalJSON() ([]byte, error) {
	type alias Snippet
	out := struct {
		alias
		Conditions json.RawMessage `json:"conditions,omitempty"`
	}{alias: alias(s)}
	if json.Valid([]byte(s.Conditions)) {
		out.Conditions = json.RawMessage(s.Conditions)
	}
	return json.Marshal(out)
}
