// Package format classifies uploaded snippet-export documents and converts
// the foreign ones into the native shape.
//
// Three formats are recognised by structural sniffing (never by declared
// metadata, which imports routinely lie about or omit):
//
//	native:        object with top-level "version" + "snippets" (or "snippet")
//	wpcode:        array whose first element has "code_type" + "auto_insert"
//	code-snippets: array whose first element has "scope" + "active"
//
// Anything else is FormatUnknown and passes through conversion unchanged;
// callers treat that as "likely to fail downstream validation", not as a
// hard error.
package format

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/edgecode/snippetd/internal/conditions"
	"github.com/edgecode/snippetd/internal/model"
	"github.com/edgecode/snippetd/internal/slug"
)

// Format identifies an import document's schema.
type Format string

const (
	FormatNative       Format = "ecs"
	FormatWPCode       Format = "wpcode"
	FormatCodeSnippets Format = "code-snippets"
	FormatUnknown      Format = "unknown"
)

// Name returns the display name for a format.
func (f Format) Name() string {
	switch f {
	case FormatNative:
		return "Edge Code Snippets"
	case FormatWPCode:
		return "WPCode"
	case FormatCodeSnippets:
		return "Code Snippets"
	default:
		return "Unknown Format"
	}
}

// Record is one snippet in native import/export shape. Conditions is the
// decoded rule set; it round-trips as a JSON object, not a string.
type Record struct {
	Title      string          `json:"title"`
	Slug       string          `json:"slug"`
	Type       string          `json:"type"`
	Code       string          `json:"code"`
	Active     bool            `json:"active"`
	Mode       string          `json:"mode,omitempty"`
	Conditions *conditions.Set `json:"conditions,omitempty"`
}

// Document is the native export envelope.
type Document struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	ExportedBy string    `json:"exported_by"`
	SiteURL    string    `json:"site_url"`
	Snippets   []Record  `json:"snippets"`
}

// placeholderTitle is used when a foreign record has no usable title.
const placeholderTitle = "Imported Snippet"

// Detect sniffs the schema of raw import data.
// Detection runs before any field mapping is attempted.
func Detect(raw []byte) Format {
	// Try the native envelope first: a JSON object with version + snippets.
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		_, hasVersion := obj["version"]
		if _, ok := obj["snippets"]; hasVersion && ok {
			return FormatNative
		}
		if _, ok := obj["snippet"]; hasVersion && ok {
			return FormatNative
		}
		return FormatUnknown
	}

	// Not an object: the competitor formats are bare arrays, classified by
	// the keys present on the first element.
	var arr []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) == 0 {
		return FormatUnknown
	}

	first := arr[0]
	if _, ok := first["code_type"]; ok {
		if _, ok := first["auto_insert"]; ok {
			return FormatWPCode
		}
	}
	if _, ok := first["scope"]; ok {
		if _, ok := first["active"]; ok {
			return FormatCodeSnippets
		}
	}

	return FormatUnknown
}

// Convert normalizes raw import data of the given format into a native
// Document. Native input is decoded as-is; unknown input is decoded
// best-effort as native and whatever survives is returned.
func Convert(raw []byte, f Format) (*Document, error) {
	switch f {
	case FormatWPCode:
		return convertWPCode(raw)
	case FormatCodeSnippets:
		return convertCodeSnippets(raw)
	case FormatNative:
		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		return &doc, nil
	default:
		return convertUnknown(raw)
	}
}

// convertUnknown is the pass-through path for data that matched no known
// schema. It takes whatever decodes as native, either the full envelope
// or a bare record array, and leaves rejecting the nonsense within to
// per-record validation downstream.
func convertUnknown(raw []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err == nil {
		return &doc, nil
	}

	var recs []Record
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, err
	}
	return envelope(recs), nil
}

// wpcodeRecord mirrors the WPCode export shape for the fields we map.
type wpcodeRecord struct {
	Title      string `json:"title"`
	Code       string `json:"code"`
	CodeType   string `json:"code_type"`
	AutoInsert int    `json:"auto_insert"`
	Location   string `json:"location"`
}

func convertWPCode(raw []byte) (*Document, error) {
	var in []wpcodeRecord
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(in))
	for _, r := range in {
		title := r.Title
		if strings.TrimSpace(title) == "" {
			title = placeholderTitle
		}

		// WPCode exports double-escape line breaks and forward slashes,
		// and quote-escape the rest of the code.
		code := strings.ReplaceAll(r.Code, `\r\n`, "\n")
		code = strings.ReplaceAll(code, `\/`, "/")
		code = stripSlashes(code)

		out = append(out, Record{
			Title:      title,
			Slug:       slug.Make(title),
			Type:       mapWPCodeType(r.CodeType),
			Code:       code,
			Active:     r.AutoInsert == 1,
			Conditions: mapWPCodeLocation(r.Location),
		})
	}

	return envelope(out), nil
}

// codeSnippetsRecord mirrors the Code Snippets export shape.
// "active" is sometimes an int and sometimes a string, so it is decoded
// as a raw message and coerced.
type codeSnippetsRecord struct {
	Name   string          `json:"name"`
	Code   string          `json:"code"`
	Scope  string          `json:"scope"`
	Active json.RawMessage `json:"active"`
}

func convertCodeSnippets(raw []byte) (*Document, error) {
	var in []codeSnippetsRecord
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(in))
	for _, r := range in {
		title := r.Name
		if strings.TrimSpace(title) == "" {
			title = placeholderTitle
		}

		out = append(out, Record{
			Title: title,
			Slug:  slug.Make(title),
			// Code Snippets is PHP-only.
			Type:       model.TypePHP,
			Code:       r.Code,
			Active:     truthy(r.Active),
			Conditions: mapCodeSnippetsScope(r.Scope),
		})
	}

	return envelope(out), nil
}

// stripSlashes removes one level of backslash escaping: \" becomes ",
// \\ becomes \, and a trailing lone backslash is dropped.
func stripSlashes(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			if i < len(s) {
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func envelope(records []Record) *Document {
	return &Document{
		Version:    "1.0",
		ExportedAt: time.Now().UTC(),
		Snippets:   records,
	}
}

// truthy coerces the loosely-typed "active" field: 1 and "1" are true,
// everything else (0, "0", true/false booleans included) follows suit.
func truthy(raw json.RawMessage) bool {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	return s == "1" || s == "true"
}

// mapWPCodeType maps a WPCode code_type to a native type.
// Unknown types default to php, matching how they most often execute.
func mapWPCodeType(t string) string {
	switch strings.ToLower(t) {
	case "php":
		return model.TypePHP
	case "js", "javascript":
		return model.TypeJS
	case "css":
		return model.TypeCSS
	case "html", "text":
		return model.TypeHTML
	default:
		return model.TypePHP
	}
}

// mapWPCodeLocation maps a WPCode auto-insert location onto a page_type
// condition set. Unrecognized locations mean "everywhere" (nil).
func mapWPCodeLocation(location string) *conditions.Set {
	switch location {
	case "admin":
		return setOf("admin")
	case "frontend", "front-end":
		s := conditions.ExpandPreset("frontend")
		return &s
	case "single":
		return setOf("single")
	case "page":
		return setOf("page")
	case "archive":
		return setOf("archive")
	default:
		// "everywhere" and anything unknown: no conditions.
		return nil
	}
}

// mapCodeSnippetsScope maps a Code Snippets scope onto conditions.
// "global" and "single-use" (no native equivalent) both mean everywhere.
func mapCodeSnippetsScope(scope string) *conditions.Set {
	switch scope {
	case "admin":
		return setOf("admin")
	case "front-end", "frontend":
		s := conditions.ExpandPreset("frontend")
		return &s
	default:
		return nil
	}
}

func setOf(pageTypes ...string) *conditions.Set {
	return &conditions.Set{PageType: pageTypes}
}
