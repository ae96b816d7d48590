package llm

import (
	"strings"
	"testing"

	"datachat/src/embedding"
)

func TestEstimateTokenCount(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"whitespace only", "   ", 0},
		{"short words", "a red cup", 3},
		{"long word splits", "unquestionably", 4},
		{"number per digit", "12345", 5},
		{"punctuation", "yes !", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateTokenCount(tt.text); got != tt.want {
				t.Errorf("EstimateTokenCount(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestFormatContextNumbersDocuments(t *testing.T) {
	out := formatContext([]embedding.SimilarityResult{
		{Text: "first doc"},
		{Text: "second doc"},
	})
	if !strings.Contains(out, "1. first doc") || !strings.Contains(out, "2. second doc") {
		t.Errorf("formatContext() = %q, want numbered documents", out)
	}
}

func TestFormatContextRespectsTokenBudget(t *testing.T) {
	// Each document estimates far beyond the context budget on its own.
	huge := strings.Repeat("abcdefgh ", 4*contextTokenBudget)
	out := formatContext([]embedding.SimilarityResult{
		{Text: huge},
		{Text: "second doc"},
	})
	if !strings.Contains(out, "1. ") {
		t.Error("the best match must always be included")
	}
	if strings.Contains(out, "2. second doc") {
		t.Error("documents past the token budget must be dropped")
	}
}

func TestHolderSwap(t *testing.T) {
	first := &OllamaProvider{}
	second := &OllamaProvider{}
	holder := NewHolder(first)

	if holder.Get() != Provider(first) {
		t.Fatal("Get() did not return the seeded provider")
	}
	if prev := holder.Swap(second); prev != Provider(first) {
		t.Error("Swap() did not return the previous provider")
	}
	if holder.Get() != Provider(second) {
		t.Error("Get() did not return the swapped provider")
	}
}
