// Package syntax performs best-effort validation of snippet code before it
// is stored.
//
// The policy is deliberately permissive: only checks that can run reliably
// in any environment are allowed to reject code. PHP gets a lexical scan
// plus, when a php binary is on PATH, a real `php -l` lint; if the binary
// is missing or the lint cannot run, the code is assumed valid rather than
// blocking the save. JavaScript and CSS get cheap structural heuristics,
// HTML a tag-balance pass. None of this replaces execution-time errors,
// it just catches the obvious mistakes early.
package syntax

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/edgecode/snippetd/internal/model"
)

// Result is the outcome of a validation pass. Line is 0 when no line
// number could be determined.
type Result struct {
	Valid bool   `json:"valid"`
	Error string `json:"error"`
	Line  int    `json:"line"`
}

func ok() Result {
	return Result{Valid: true}
}

// Validator checks snippet code by type. The exec hooks exist so tests can
// simulate environments with and without a php binary.
type Validator struct {
	lookPath func(file string) (string, error)
	run      func(bin string, args ...string) ([]byte, error)
}

// New returns a Validator that uses the real PATH and process execution.
func New() *Validator {
	return &Validator{
		lookPath: exec.LookPath,
		run: func(bin string, args ...string) ([]byte, error) {
			return exec.Command(bin, args...).CombinedOutput()
		},
	}
}

// Validate dispatches on snippet type. Unknown types are accepted.
func (v *Validator) Validate(code, typ string) Result {
	switch strings.ToLower(typ) {
	case model.TypePHP:
		return v.validatePHP(code)
	case model.TypeJS, "javascript":
		return validateJS(code)
	case model.TypeCSS:
		return validateCSS(code)
	case model.TypeHTML:
		return validateHTML(code)
	default:
		return ok()
	}
}

// ============================================================================
// PHP
// ============================================================================

var (
	onLineRe   = regexp.MustCompile(`on line (\d+)`)
	pathRe     = regexp.MustCompile(`in \S+ on line`)
	openTagRe  = regexp.MustCompile(`(?i)^\s*<\?`)
	parseErrRe = regexp.MustCompile(`(?i)(parse|fatal) error`)
)

// validatePHP runs a lexical scan first (always reliable, may reject),
// then tries `php -l` (may reject only when the lint actually ran).
func (v *Validator) validatePHP(code string) Result {
	if strings.TrimSpace(code) == "" {
		return ok()
	}

	if r := scanBadChars(code); !r.Valid {
		return r
	}

	bin, err := v.lookPath("php")
	if err != nil {
		// No interpreter available. Assume valid so the snippet can
		// still be saved.
		return ok()
	}

	f, err := os.CreateTemp("", "snippetd-lint-*.php")
	if err != nil {
		return ok()
	}
	defer os.Remove(f.Name())

	src := code
	if !openTagRe.MatchString(code) {
		src = "<?php\n" + code
	}
	if _, err := f.WriteString(src); err != nil {
		f.Close()
		return ok()
	}
	f.Close()

	out, runErr := v.run(bin, "-l", f.Name())
	if runErr == nil {
		return ok()
	}
	if len(out) == 0 || !parseErrRe.Match(out) {
		// The process failed without producing a lint diagnostic, which
		// means the lint itself broke, not the code.
		return ok()
	}

	// Only the first line carries the diagnostic; the rest repeats the
	// temp-file path.
	first, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	msg := strings.Join(strings.Fields(first), " ")

	line := 0
	if m := onLineRe.FindStringSubmatch(msg); m != nil {
		line, _ = strconv.Atoi(m[1])
	}

	return Result{Valid: false, Error: cleanLintMessage(msg, f.Name()), Line: line}
}

// scanBadChars rejects NUL and control bytes that the PHP lexer treats as
// bad characters. Tab, newline and carriage return are fine.
func scanBadChars(code string) Result {
	line := 1
	for i := 0; i < len(code); i++ {
		c := code[i]
		if c == '\n' {
			line++
			continue
		}
		if c == 0 || (c < 0x20 && c != '\t' && c != '\r') {
			return Result{
				Valid: false,
				Error: "Invalid character found in code",
				Line:  line,
			}
		}
	}
	return ok()
}

// cleanLintMessage strips temp-file paths out of a php -l diagnostic so the
// user never sees server paths.
func cleanLintMessage(msg, tmpPath string) string {
	msg = pathRe.ReplaceAllString(msg, "on line")
	msg = strings.ReplaceAll(msg, tmpPath, "your code")
	return strings.TrimSpace(msg)
}

// ============================================================================
// JAVASCRIPT
// ============================================================================

var jsCommentRe = regexp.MustCompile(`^\s*(//|/\*)`)

func validateJS(code string) Result {
	if strings.TrimSpace(code) == "" {
		return ok()
	}

	var errs []string

	if strings.Count(code, "{") != strings.Count(code, "}") {
		errs = append(errs, "Unmatched curly braces")
	}
	if strings.Count(code, "(") != strings.Count(code, ")") {
		errs = append(errs, "Unmatched parentheses")
	}
	if strings.Count(code, "[") != strings.Count(code, "]") {
		errs = append(errs, "Unmatched square brackets")
	}

	// Per-line quote parity. This is a heuristic, so comment lines are
	// skipped and the first suspicious line ends the scan.
	for i, line := range strings.Split(code, "\n") {
		if jsCommentRe.MatchString(line) {
			continue
		}
		single := strings.Count(line, "'") - strings.Count(line, `\'`)
		double := strings.Count(line, `"`) - strings.Count(line, `\"`)
		if single%2 != 0 || double%2 != 0 {
			errs = append(errs, fmt.Sprintf("Possible unterminated string on line %d", i+1))
			break
		}
	}

	if len(errs) > 0 {
		return Result{Valid: false, Error: strings.Join(errs, "; ")}
	}
	return ok()
}

// ============================================================================
// CSS
// ============================================================================

var cssSelectorRe = regexp.MustCompile(`(?i)[a-z0-9\-_#.\[\]*:]+\s*\{`)

func validateCSS(code string) Result {
	if strings.TrimSpace(code) == "" {
		return ok()
	}

	var errs []string

	openBraces := strings.Count(code, "{")
	if openBraces != strings.Count(code, "}") {
		errs = append(errs, "Unmatched curly braces in CSS")
	}
	if strings.Count(code, "(") != strings.Count(code, ")") {
		errs = append(errs, "Unmatched parentheses in CSS")
	}
	if openBraces > 0 && !cssSelectorRe.MatchString(code) {
		errs = append(errs, "Invalid CSS selector syntax")
	}

	if len(errs) > 0 {
		return Result{Valid: false, Error: strings.Join(errs, "; ")}
	}
	return ok()
}

// ============================================================================
// HTML
// ============================================================================

// Void elements never take a closing tag, so they are excluded from the
// balance check.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// validateHTML tokenizes the fragment and checks that start and end tags
// pair up. The tokenizer itself never rejects malformed markup, so the
// balance check is the only source of errors here.
func validateHTML(code string) Result {
	if strings.TrimSpace(code) == "" {
		return ok()
	}

	z := html.NewTokenizer(strings.NewReader(code))

	var stack []string
	var errs []string
	seen := map[string]bool{}

	addErr := func(msg string) {
		if !seen[msg] {
			seen[msg] = true
			errs = append(errs, msg)
		}
	}

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF for a fully consumed fragment; anything else would
			// be a read error, which cannot happen on a string reader.
			break
		}

		name, _ := z.TagName()
		tag := string(name)

		switch tt {
		case html.StartTagToken:
			if !voidElements[tag] {
				stack = append(stack, tag)
			}
		case html.EndTagToken:
			if len(stack) > 0 && stack[len(stack)-1] == tag {
				stack = stack[:len(stack)-1]
				continue
			}
			addErr(fmt.Sprintf("Unexpected closing tag </%s>", tag))
		}
	}

	for _, tag := range stack {
		addErr(fmt.Sprintf("Unclosed <%s> tag", tag))
	}

	if len(errs) > 0 {
		return Result{Valid: false, Error: strings.Join(errs, "; ")}
	}
	return ok()
}
