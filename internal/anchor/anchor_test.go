package anchor

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"The door creaked open, slowly.", "the door creaked open slowly"},
		{"  Multiple   spaces\t\nhere  ", "multiple spaces here"},
		{"It's a \"test\"!", "its a test"},
		{"", ""},
		{"...", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolve(t *testing.T) {
	paragraphs := []string{
		"It was a bright cold day in April, and the clocks were striking thirteen.",
		"The door creaked open, slowly and with menace.",
		"Winston walked down the corridor toward his cubicle.",
	}
	var r Resolver

	t.Run("exact containment wins", func(t *testing.T) {
		idx := r.Resolve("the clocks were striking thirteen", 90, paragraphs)
		if idx != 0 {
			t.Errorf("expected paragraph 0, got %d", idx)
		}
	})

	t.Run("fuzzy match tolerates rewording", func(t *testing.T) {
		idx := r.Resolve("the door creaked open slowly", 0, paragraphs)
		if idx != 1 {
			t.Errorf("expected paragraph 1, got %d", idx)
		}
	})

	t.Run("first containment match wins in document order", func(t *testing.T) {
		ps := []string{"the whale surfaced", "again the whale surfaced", "the whale surfaced once more"}
		idx := r.Resolve("the whale surfaced", 100, ps)
		if idx != 0 {
			t.Errorf("expected first match, got %d", idx)
		}
	})

	t.Run("implausible anchor falls back to location", func(t *testing.T) {
		idx := r.Resolve("a completely unrelated sentence about spaceships and dragons", 50, paragraphs)
		// floor(50/100 * 3) = 1
		if idx != 1 {
			t.Errorf("expected positional index 1, got %d", idx)
		}
	})

	t.Run("empty anchor uses location", func(t *testing.T) {
		if idx := r.Resolve("", 0, paragraphs); idx != 0 {
			t.Errorf("location 0 should resolve to first paragraph, got %d", idx)
		}
		if idx := r.Resolve("", 100, paragraphs); idx != 2 {
			t.Errorf("location 100 should resolve to last paragraph, got %d", idx)
		}
		if idx := r.Resolve("", 66, paragraphs); idx != 1 {
			t.Errorf("expected positional index 1, got %d", idx)
		}
	})

	t.Run("location clamped to range", func(t *testing.T) {
		if idx := r.Resolve("", -5, paragraphs); idx != 0 {
			t.Errorf("negative location should clamp to 0, got %d", idx)
		}
		if idx := r.Resolve("", 250, paragraphs); idx != 2 {
			t.Errorf("overlarge location should clamp to last, got %d", idx)
		}
	})

	t.Run("no paragraphs yields sentinel", func(t *testing.T) {
		if idx := r.Resolve("anything", 50, nil); idx != NoAnchor {
			t.Errorf("expected NoAnchor, got %d", idx)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		first := r.Resolve("the door creaked open slowly", 40, paragraphs)
		for i := 0; i < 10; i++ {
			if got := r.Resolve("the door creaked open slowly", 40, paragraphs); got != first {
				t.Fatalf("resolution not deterministic: %d vs %d", got, first)
			}
		}
	})
}

func TestResolveThreshold(t *testing.T) {
	paragraphs := []string{
		"He ate breakfast quickly before leaving the house.",
		"The storm gathered over the distant mountains that evening.",
	}

	// Three of five anchor tokens appear in paragraph 1 (score 0.6).
	anchorSentence := "storm gathered over black ships"

	strict := Resolver{Threshold: 0.9}
	if idx := strict.Resolve(anchorSentence, 0, paragraphs); idx != 0 {
		t.Errorf("strict threshold should fall back to position, got %d", idx)
	}

	lenient := Resolver{Threshold: 0.5}
	if idx := lenient.Resolve(anchorSentence, 0, paragraphs); idx != 1 {
		t.Errorf("lenient threshold should accept fuzzy match, got %d", idx)
	}
}
