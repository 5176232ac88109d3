package telegram

import (
	"testing"

	"github.com/abdul-hamid-achik/media-vault/internal/catalog"
)

func TestKindFromMime(t *testing.T) {
	tests := []struct {
		mime string
		want catalog.Kind
	}{
		{"video/mp4", catalog.KindVideo},
		{"video/quicktime", catalog.KindVideo},
		{"application/pdf", catalog.KindPDF},
		{"image/jpeg", catalog.KindOther},
		{"", catalog.KindOther},
	}

	for _, tt := range tests {
		if got := kindFromMime(tt.mime); got != tt.want {
			t.Errorf("kindFromMime(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}

func TestScalePctClampsToRange(t *testing.T) {
	tests := []struct {
		name        string
		read, total int64
		lo, hi      int
		want        int
	}{
		{"unknown total stays at lo", 100, 0, 5, 40, 5},
		{"zero read", 0, 1000, 5, 40, 5},
		{"halfway", 500, 1000, 5, 40, 22},
		{"complete", 1000, 1000, 5, 40, 40},
		{"over total clamps to hi", 2000, 1000, 45, 95, 95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scalePct(tt.read, tt.total, tt.lo, tt.hi); got != tt.want {
				t.Errorf("scalePct(%d, %d, %d, %d) = %d, want %d", tt.read, tt.total, tt.lo, tt.hi, got, tt.want)
			}
		})
	}
}

func TestSplitHierarchy(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"org/chapter", []string{"org", "chapter"}},
		{"/org/chapter/", []string{"org", "chapter"}},
		{"", nil},
		{"solo", []string{"solo"}},
	}

	for _, tt := range tests {
		got := splitHierarchy(tt.in)
		if len(got) != len(tt.want) {
			t.Fatalf("splitHierarchy(%q) = %v, want %v", tt.in, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitHierarchy(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}
