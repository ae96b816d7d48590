package llm

import (
	"strings"
	"unicode"
)

// contextTokenBudget caps the estimated token count spent on retrieved
// context documents so the prompt stays inside small model windows.
const contextTokenBudget = 2048

// WARNING: This is a simplified estimation of subword token count and
// should be used with caution. It uses character-based heuristics
// instead of a real tokenizer and may be inaccurate for non-English
// text and special characters. It is intended only for rough budgeting
// of prompt context.

// EstimateTokenCount provides a rough estimation of the token count of
// a text under a subword tokenizer.
func EstimateTokenCount(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}

	count := 0
	for _, word := range strings.Fields(text) {
		count += estimateWordTokens(word)
	}
	return count
}

func estimateWordTokens(word string) int {
	// Handle punctuation
	if len(word) == 1 && unicode.IsPunct(rune(word[0])) {
		return 1
	}

	// Handle numbers
	if isNumber(word) {
		return len(word) // Each numeric character might be an independent token
	}

	length := len(word)
	if length <= 4 {
		return 1
	}
	// Long words get broken into multiple subword pieces.
	return (length + 3) / 4
}

func isNumber(word string) bool {
	for _, r := range word {
		if !unicode.IsDigit(r) && r != '.' && r != ',' {
			return false
		}
	}
	return true
}
