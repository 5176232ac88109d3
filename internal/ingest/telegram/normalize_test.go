package telegram

import "testing"

func TestNormalizeNameStripsLeadingOrdinal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"paren", "123) Intro.mp4", "Intro.mp4"},
		{"dot", "03. Lecture One.mp4", "Lecture One.mp4"},
		{"dash", "1189-Appendix.pdf", "Appendix.pdf"},
		{"underscore", "7_chapter.mp4", "chapter.mp4"},
		{"no prefix", "Keynote.mp4", "Keynote.mp4"},
		{"bracket", "21] Closing Remarks.mp4", "Closing Remarks.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeName(tt.in); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeNameStripsDisallowedChars(t *testing.T) {
	got := NormalizeName("weird:name*with?chars<>\"|\\.mp4")
	want := "weirdnamewithchars.mp4"
	if got != want {
		t.Errorf("NormalizeName = %q, want %q", got, want)
	}
}

func TestNormalizeNameEmptyFallsBackToUntitled(t *testing.T) {
	if got := NormalizeName("12) "); got != "untitled" {
		t.Errorf("NormalizeName(%q) = %q, want %q", "12) ", got, "untitled")
	}
}
