package workflow

import "testing"

func TestIsReference(t *testing.T) {
	cases := []struct {
		value interface{}
		want  bool
	}{
		{"{{extract.text}}", true},
		{"{{workflow.input.source}}", true},
		{"{{ extract.text }}", true},
		{"plain string", false},
		{"{{unclosed", false},
		{"unopened}}", false},
		{42, false},
		{nil, false},
		{map[string]interface{}{"a": 1}, false},
	}
	for _, c := range cases {
		if got := IsReference(c.value); got != c.want {
			t.Errorf("IsReference(%v) = %v, want %v", c.value, got, c.want)
		}
	}
}

func TestTrimReference(t *testing.T) {
	if got := TrimReference("{{extract.text}}"); got != "extract.text" {
		t.Errorf("unexpected inner: %q", got)
	}
	if got := TrimReference("{{ extract.text }}"); got != "extract.text" {
		t.Errorf("whitespace not trimmed: %q", got)
	}
}

func TestSplitReference(t *testing.T) {
	parts := SplitReference("analyze.summary.stats.words")
	if len(parts) != 4 || parts[0] != "analyze" || parts[3] != "words" {
		t.Errorf("unexpected parts: %v", parts)
	}
}
