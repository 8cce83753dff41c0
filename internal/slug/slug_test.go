package slug

import "testing"

func TestMake(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Title!!", "my-title"},
		{" A  B_C ", "a-b-c"},
		{"Hello World", "hello-world"},
		{"already-a-slug", "already-a-slug"},
		{"Caché busting!", "cach-busting"},
		{"--edges--", "edges"},
		{"!!!", ""},
		{"", ""},
		{"Tabs\tand\nnewlines", "tabs-and-newlines"},
	}

	for _, tt := range tests {
		if got := Make(tt.in); got != tt.want {
			t.Errorf("Make(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// A slug run through Make again must not change: the admin UI previews
// slugs client-side and the server re-derives them, so the transform has
// to be idempotent.
func TestMake_Idempotent(t *testing.T) {
	inputs := []string{"My Title!!", " A  B_C ", "Hello World", "x_y z"}
	for _, in := range inputs {
		once := Make(in)
		if twice := Make(once); twice != once {
			t.Errorf("Make not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}
