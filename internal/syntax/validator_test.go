package syntax

import (
	"errors"
	"strings"
	"testing"
)

// fakeValidator builds a Validator with canned exec behavior so tests do
// not depend on whether php is installed on the machine.
func fakeValidator(phpFound bool, lintOut string, lintErr error) *Validator {
	return &Validator{
		lookPath: func(file string) (string, error) {
			if phpFound {
				return "/usr/bin/php", nil
			}
			return "", errors.New("executable file not found in $PATH")
		},
		run: func(bin string, args ...string) ([]byte, error) {
			return []byte(lintOut), lintErr
		},
	}
}

// ============================================================================
// PHP
// ============================================================================

func TestValidatePHP_EmptyIsValid(t *testing.T) {
	v := fakeValidator(true, "", nil)
	if r := v.Validate("   \n ", "php"); !r.Valid {
		t.Errorf("empty code must be valid, got %+v", r)
	}
}

func TestValidatePHP_BadCharacter(t *testing.T) {
	v := fakeValidator(true, "", nil)
	r := v.Validate("echo 'hi';\n\x00echo 'bye';", "php")
	if r.Valid {
		t.Fatal("NUL byte must be rejected")
	}
	if r.Line != 2 {
		t.Errorf("Line = %d, want 2", r.Line)
	}
	if r.Error != "Invalid character found in code" {
		t.Errorf("Error = %q", r.Error)
	}
}

func TestValidatePHP_NoInterpreterIsPermissive(t *testing.T) {
	v := fakeValidator(false, "", nil)
	r := v.Validate("this is not even php {{{", "php")
	if !r.Valid {
		t.Errorf("without php on PATH validation must pass, got %+v", r)
	}
}

func TestValidatePHP_LintFailure(t *testing.T) {
	out := "PHP Parse error:  syntax error, unexpected token \"}\" in /tmp/snippetd-lint-123.php on line 3\nErrors parsing /tmp/snippetd-lint-123.php"
	v := fakeValidator(true, out, errors.New("exit status 255"))

	r := v.Validate("function f() {}}", "php")
	if r.Valid {
		t.Fatal("lint diagnostic must reject the code")
	}
	if r.Line != 3 {
		t.Errorf("Line = %d, want 3", r.Line)
	}
	if strings.Contains(r.Error, "/tmp/") {
		t.Errorf("temp paths must be stripped, got %q", r.Error)
	}
	if !strings.Contains(r.Error, "on line 3") {
		t.Errorf("Error = %q, want line reference kept", r.Error)
	}
}

func TestValidatePHP_LintCrashIsPermissive(t *testing.T) {
	// Process failed without a diagnostic: the lint broke, not the code.
	v := fakeValidator(true, "", errors.New("fork/exec: resource temporarily unavailable"))
	if r := v.Validate("echo 'hi';", "php"); !r.Valid {
		t.Errorf("lint crash must not reject the code, got %+v", r)
	}
}

func TestValidatePHP_LintPasses(t *testing.T) {
	v := fakeValidator(true, "No syntax errors detected", nil)
	if r := v.Validate("echo 'hi';", "php"); !r.Valid {
		t.Errorf("clean lint must pass, got %+v", r)
	}
}

// ============================================================================
// JAVASCRIPT
// ============================================================================

func TestValidateJS(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		code    string
		valid   bool
		wantErr string
	}{
		{"empty", "  ", true, ""},
		{"clean", "const x = (a) => { return [a]; };", true, ""},
		{"unmatched braces", "function f() {", false, "Unmatched curly braces"},
		{"unmatched parens", "f(a;", false, "Unmatched parentheses"},
		{"unmatched brackets", "const a = [1, 2;", false, "Unmatched square brackets"},
		{"unterminated string", "const s = 'oops;", false, "Possible unterminated string on line 1"},
		{"quote in comment ignored", "// don't panic\nconst x = 1;", true, ""},
		{"escaped quotes ok", `const s = 'it\'s fine';`, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := v.Validate(tt.code, "js")
			if r.Valid != tt.valid {
				t.Fatalf("Valid = %v, want %v (%+v)", r.Valid, tt.valid, r)
			}
			if tt.wantErr != "" && !strings.Contains(r.Error, tt.wantErr) {
				t.Errorf("Error = %q, want it to contain %q", r.Error, tt.wantErr)
			}
		})
	}
}

func TestValidateJS_MultipleErrorsJoined(t *testing.T) {
	r := New().Validate("f(a { [", "js")
	if r.Valid {
		t.Fatal("expected invalid")
	}
	if !strings.Contains(r.Error, "; ") {
		t.Errorf("multiple errors must be joined, got %q", r.Error)
	}
}

// the javascript alias routes to the same checker
func TestValidate_JavascriptAlias(t *testing.T) {
	r := New().Validate("function f() {", "javascript")
	if r.Valid {
		t.Error("alias must run the js checker")
	}
}

// ============================================================================
// CSS
// ============================================================================

func TestValidateCSS(t *testing.T) {
	v := New()

	tests := []struct {
		name  string
		code  string
		valid bool
	}{
		{"empty", "", true},
		{"clean rule", "body { color: red; }", true},
		{"class selector", ".hero > a:hover { opacity: 0.5; }", true},
		{"unmatched brace", "body { color: red;", false},
		{"unmatched paren", "body { width: calc(100% - 10px; }", false},
		{"no selector before brace", "{ color: red; }", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := v.Validate(tt.code, "css")
			if r.Valid != tt.valid {
				t.Errorf("Valid = %v, want %v (%+v)", r.Valid, tt.valid, r)
			}
		})
	}
}

// ============================================================================
// HTML
// ============================================================================

func TestValidateHTML(t *testing.T) {
	v := New()

	tests := []struct {
		name  string
		code  string
		valid bool
	}{
		{"empty", " ", true},
		{"balanced", "<div><p>hello</p></div>", true},
		{"plain text", "just some text", true},
		{"void elements", `<img src="x"><br><hr>`, true},
		{"self closing", "<div><span/></div>", true},
		{"unclosed tag", "<div><span>oops</div>", false},
		{"stray closing tag", "<p>hi</p></div>", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := v.Validate(tt.code, "html")
			if r.Valid != tt.valid {
				t.Errorf("Valid = %v, want %v (%+v)", r.Valid, tt.valid, r)
			}
		})
	}
}

func TestValidateHTML_DuplicateErrorsCollapsed(t *testing.T) {
	r := New().Validate("</div></div></div>", "html")
	if r.Valid {
		t.Fatal("expected invalid")
	}
	if strings.Count(r.Error, "Unexpected closing tag </div>") != 1 {
		t.Errorf("duplicate diagnostics must collapse, got %q", r.Error)
	}
}

// ============================================================================
// DISPATCH
// ============================================================================

func TestValidate_UnknownTypeIsValid(t *testing.T) {
	if r := New().Validate("anything at all {{{", "ruby"); !r.Valid {
		t.Errorf("unknown types must be accepted, got %+v", r)
	}
}
