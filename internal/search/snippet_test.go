package search

import (
	"strings"
	"testing"
)

func TestGenerateSnippet_VerbatimWhenShort(t *testing.T) {
	content := "Short content about apples."
	s := GenerateSnippet(content, "apples", 200)
	if s.Text != content {
		t.Errorf("short content should be verbatim, got %q", s.Text)
	}
	if s.Offset != 0 || s.Length != len(content) {
		t.Errorf("offset=%d length=%d", s.Offset, s.Length)
	}
	if len(s.MatchedTerms) != 1 || s.MatchedTerms[0] != "apples" {
		t.Errorf("matched = %v", s.MatchedTerms)
	}
}

func TestGenerateSnippet_PicksRelevantWindow(t *testing.T) {
	filler := strings.Repeat("Nothing of interest here. ", 20)
	target := "The volcano eruption started suddenly at dawn."
	content := filler + target + " " + filler

	s := GenerateSnippet(content, "volcano eruption dawn", 120)
	if !strings.Contains(s.Text, "volcano") {
		t.Errorf("snippet missed the relevant window: %q", s.Text)
	}
	if len(s.Text) > 120+24 {
		t.Errorf("snippet length %d grossly exceeds window", len(s.Text))
	}
	if s.Offset <= 0 || s.Offset >= len(content) {
		t.Errorf("offset = %d out of range", s.Offset)
	}
	for _, term := range []string{"volcano", "eruption", "dawn"} {
		found := false
		for _, m := range s.MatchedTerms {
			if m == term {
				found = true
			}
		}
		if !found && strings.Contains(s.Text, term) {
			t.Errorf("term %q in text but not reported", term)
		}
	}
}

func TestGenerateSnippet_TrimsToWordBoundary(t *testing.T) {
	content := strings.Repeat("sentence words flow onward here today ", 20)
	s := GenerateSnippet(content, "words", 100)
	if strings.HasSuffix(s.Text, " ") {
		t.Errorf("snippet has trailing space: %q", s.Text)
	}
	// The repeated text has no sentence ends, so a word-boundary trim applies:
	// the snippet must end on a complete word from the source.
	last := s.Text[strings.LastIndex(s.Text, " ")+1:]
	if !strings.Contains(content, " "+last+" ") && !strings.HasPrefix(content, last) {
		t.Errorf("snippet ends mid-word: %q", last)
	}
}

func TestGenerateSnippet_ZeroLengthUsesDefault(t *testing.T) {
	content := strings.Repeat("x", 500)
	s := GenerateSnippet(content, "none", 0)
	if s.Length > DefaultSnippetLength {
		t.Errorf("length = %d, want <= %d", s.Length, DefaultSnippetLength)
	}
}
