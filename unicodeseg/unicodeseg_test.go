package unicodeseg

import "testing"

func TestCountGraphemes(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"abc", 3},
		{"héllo", 5},
		{"é", 1}, // e + combining acute is one user-perceived character
		{"\U0001F44D", 1}, // thumbs-up emoji
		{"日本語", 3},
	}
	for _, tt := range tests {
		if got := Count(tt.input); got != tt.want {
			t.Errorf("Count(%q): got %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestWidthWideRunes(t *testing.T) {
	if got := Width("ab"); got != 2 {
		t.Errorf("Width(ab): got %d, want 2", got)
	}
	if got := Width("日本"); got != 4 {
		t.Errorf("Width(日本): got %d, want 4", got)
	}
}

func TestConcatPreservesRangeTags(t *testing.T) {
	s := Concat(Plain("start "), Tagged("a&b", HTML))
	s = Concat(s, Plain(" end"))

	if s.Text != "start a&b end" {
		t.Fatalf("unexpected text %q", s.Text)
	}
	if len(s.Ranges) != 3 {
		t.Fatalf("expected 3 ranges, got %#v", s.Ranges)
	}
	if s.Ranges[1].Start != 6 || s.Ranges[1].End != 9 || s.Ranges[1].Type != HTML {
		t.Fatalf("unexpected middle range %#v", s.Ranges[1])
	}
	if got := Render(s); got != "start a&amp;b end" {
		t.Errorf("Render: got %q, want %q", got, "start a&amp;b end")
	}
}

func TestSubstringClipsAndRebases(t *testing.T) {
	s := Concat(Tagged("ab", Trusted), Tagged("cd", HTML))
	sub := Substring(s, 1, 3)

	if sub.Text != "bc" {
		t.Fatalf("unexpected text %q", sub.Text)
	}
	if len(sub.Ranges) != 2 {
		t.Fatalf("expected 2 ranges, got %#v", sub.Ranges)
	}
	if sub.Ranges[0] != (Range{Start: 0, End: 1, Type: Trusted}) {
		t.Errorf("unexpected first range %#v", sub.Ranges[0])
	}
	if sub.Ranges[1] != (Range{Start: 1, End: 2, Type: HTML}) {
		t.Errorf("unexpected second range %#v", sub.Ranges[1])
	}

	if empty := Substring(s, 3, 1); empty.Text != "" || len(empty.Ranges) != 0 {
		t.Errorf("inverted bounds: expected empty result, got %#v", empty)
	}
}

func TestEscapePolicies(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) string
		in   string
		want string
	}{
		{"html", HTMLEscape, `a<b>&"c"`, "a&lt;b&gt;&amp;&quot;c&quot;"},
		{"html-attribute", HTMLAttributeEscape, "a b", "a&#x20;b"},
		{"javascript", JavaScriptEscape, "a'b\nc", `a\'b\nc`},
		{"percent", PercentEscape, "a b/c", "a%20b%2Fc"},
	}
	for _, tt := range tests {
		if got := tt.fn(tt.in); got != tt.want {
			t.Errorf("%s(%q): got %q, want %q", tt.name, tt.in, got, tt.want)
		}
	}
}
