// Package conversation implements the per-phase rolling dialog with
// pruning and summarization.
package conversation

// EstimateTokens is a coarse token-count heuristic (~4 chars/token).
// Close enough for pruning decisions; an exact tokenizer would buy
// nothing here.
func EstimateTokens(s string) int {
	n := len(s) / 4
	if n == 0 && len(s) > 0 {
		n = 1
	}
	return n
}
