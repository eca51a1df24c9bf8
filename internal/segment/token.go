package segment

import "strings"

// EstimateTokens gives a rough token count using a words-per-token
// heuristic. Exact tokenization is not required for segmentation; callers
// needing parity with a specific model should supply its tokenizer as the
// TokenCounter instead.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	// Roughly 1.33 tokens per English word.
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
